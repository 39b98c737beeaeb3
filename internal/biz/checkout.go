package biz

import (
	"context"
	"fmt"
	"time"

	"credit-service/internal/clock"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// OrderItem 订单行项目
type OrderItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // 分
	Quantity  int64  `json:"quantity"`
}

// PricedOrder 定价结果
type PricedOrder struct {
	Items     []OrderItem
	AccountID *string
	Subtotal  int64
	Discount  *PricedDiscount // 无折扣码时为空
	Total     int64
}

// Order 本地订单领域对象
type Order struct {
	OrderID         string
	AccountID       *string
	Items           []OrderItem
	Subtotal        int64
	DiscountAmount  int64
	Total           int64
	DiscountCodeID  *string
	Status          string
	IdempotencyKey  string
	ExternalOrderID string
	PaymentLinkID   string
	PaymentLinkURL  string
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderConfirmation 下单成功的返回
type OrderConfirmation struct {
	OrderID         string
	ExternalOrderID string
	PaymentLinkURL  string
	Subtotal        int64
	DiscountAmount  int64
	Total           int64
}

// CheckoutRepo 结账数据层接口（定义在 biz 层）
// FinalizeOrder 是跨表事务：折扣码核销（条件递增 + 核销记录）与
// 订单外部引用更新在同一个数据库事务内，要么同时生效要么都不生效
type CheckoutRepo interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrderByExternalID(ctx context.Context, externalOrderID string) (*Order, error)
	MarkRecorded(ctx context.Context, orderID, externalOrderID string) error
	MarkFailed(ctx context.Context, orderID, lastError string) error
	FinalizeOrder(ctx context.Context, orderID, linkID, linkURL string, code *DiscountCode, accountID *string, appliedAmount int64) error
	// MarkPaid 幂等：只有 recorded/link_created 状态会迁移，重复事件返回 alreadyPaid
	MarkPaid(ctx context.Context, orderID string) (order *Order, alreadyPaid bool, err error)
	MarkAbandoned(ctx context.Context, orderID string) error
}

// CheckoutUseCase 结账编排业务逻辑
// 组合折扣码引擎与积分账本：定价是纯函数式的只读决策，
// 核销只在外部订单确认创建之后发生
type CheckoutUseCase struct {
	repo      CheckoutRepo
	promotion *PromotionUseCase
	credit    *CreditUseCase
	payment   PaymentProviderClient
	conf      *CreditConfig
	clk       clock.Clock
	log       *log.Helper
	metrics   *metrics.CreditMetrics
}

// NewCheckoutUseCase 创建结账 UseCase
func NewCheckoutUseCase(
	repo CheckoutRepo,
	promotion *PromotionUseCase,
	credit *CreditUseCase,
	payment PaymentProviderClient,
	conf *CreditConfig,
	clk clock.Clock,
	logger log.Logger,
) *CheckoutUseCase {
	return &CheckoutUseCase{
		repo:      repo,
		promotion: promotion,
		credit:    credit,
		payment:   payment,
		conf:      conf,
		clk:       clk,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// PriceOrder 订单定价：小计 = Σ(单价×数量)，有码则校验并计算折扣
func (uc *CheckoutUseCase) PriceOrder(ctx context.Context, items []OrderItem, code *string, accountID *string) (*PricedOrder, error) {
	if len(items) == 0 {
		return nil, creditErrors.ErrorEmptyOrder("order has no line items")
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * item.Quantity
	}

	priced := &PricedOrder{
		Items:     items,
		AccountID: accountID,
		Subtotal:  subtotal,
		Total:     subtotal,
	}

	if code != nil && *code != "" {
		discount, err := uc.promotion.Validate(ctx, *code, subtotal, accountID)
		if err != nil {
			return nil, err
		}
		priced.Discount = discount
		priced.Total = subtotal - discount.DiscountAmount
	}

	return priced, nil
}

// PlaceOrder 下单
// 状态机：pending → recorded → link_created →（外部）paid | abandoned
// 1. 先落本地订单再调外部支付，崩溃在外部调用前只会留下一条可恢复的 pending 单
// 2. 外部调用使用下单时固定的幂等键，超时重试不会在支付侧重复建单
// 3. 核销只在外部订单确认创建之后执行，且与外部引用更新同事务
// 4. 任何外部步骤失败，本地订单停留在原状态并带错误注记，本组件不自动重试
func (uc *CheckoutUseCase) PlaceOrder(ctx context.Context, priced *PricedOrder) (*OrderConfirmation, error) {
	startTime := uc.clk.Now()
	defer func() {
		uc.metrics.CheckoutDuration.Observe(time.Since(startTime).Seconds())
	}()

	if uc.payment == nil {
		uc.metrics.CheckoutTotal.WithLabelValues(constants.CheckResultError).Inc()
		return nil, creditErrors.ErrorPaymentUnavailable("payment provider is not configured")
	}

	order := &Order{
		OrderID:        fmt.Sprintf("%s%s", constants.OrderIDPrefixCheckout, uuid.New().String()),
		AccountID:      priced.AccountID,
		Items:          priced.Items,
		Subtotal:       priced.Subtotal,
		Total:          priced.Total,
		Status:         constants.OrderStatusPending,
		IdempotencyKey: uuid.New().String(),
	}

	var code *DiscountCode
	if priced.Discount != nil {
		order.DiscountAmount = priced.Discount.DiscountAmount
		order.DiscountCodeID = &priced.Discount.CodeID

		dc, err := uc.promotion.GetCode(ctx, priced.Discount.Code)
		if err != nil {
			return nil, err
		}
		if dc == nil {
			return nil, creditErrors.ErrorCodeNotFound("discount code %s not found", priced.Discount.Code)
		}
		code = dc
	}

	if err := uc.repo.CreateOrder(ctx, order); err != nil {
		uc.metrics.CheckoutTotal.WithLabelValues(constants.CheckResultError).Inc()
		return nil, err
	}

	// 外部订单创建（幂等键复用本地订单的）
	items := make([]ExternalOrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ExternalOrderItem{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	orderReply, err := uc.payment.CreateOrder(ctx, &CreateExternalOrderRequest{
		OrderID:        order.OrderID,
		Items:          items,
		DiscountAmount: order.DiscountAmount,
		Total:          order.Total,
		Currency:       "USD",
		IdempotencyKey: order.IdempotencyKey,
	})
	if err != nil {
		uc.metrics.PaymentCallTotal.WithLabelValues("create_order", constants.LockResultFailed).Inc()
		uc.metrics.CheckoutTotal.WithLabelValues(constants.CheckResultError).Inc()
		uc.failOrder(ctx, order.OrderID, err)
		return nil, creditErrors.ErrorPaymentCreateFailed("create external order: %v", err)
	}
	uc.metrics.PaymentCallTotal.WithLabelValues("create_order", constants.LockResultSuccess).Inc()

	if err := uc.repo.MarkRecorded(ctx, order.OrderID, orderReply.ExternalOrderID); err != nil {
		uc.metrics.CheckoutTotal.WithLabelValues(constants.CheckResultError).Inc()
		return nil, err
	}

	linkReply, err := uc.payment.CreatePaymentLink(ctx, &CreatePaymentLinkRequest{
		ExternalOrderID: orderReply.ExternalOrderID,
		OrderID:         order.OrderID,
		Total:           order.Total,
		IdempotencyKey:  order.IdempotencyKey,
	})
	if err != nil {
		uc.metrics.PaymentCallTotal.WithLabelValues("create_link", constants.LockResultFailed).Inc()
		uc.metrics.CheckoutTotal.WithLabelValues(constants.CheckResultError).Inc()
		uc.failOrder(ctx, order.OrderID, err)
		return nil, creditErrors.ErrorPaymentCreateFailed("create payment link: %v", err)
	}
	uc.metrics.PaymentCallTotal.WithLabelValues("create_link", constants.LockResultSuccess).Inc()

	// 核销 + 外部引用落库（同一个事务）
	// 核销在这里才发生：外部订单已确认创建，订单已经可支付
	if err := uc.repo.FinalizeOrder(ctx, order.OrderID, linkReply.LinkID, linkReply.URL, code, order.AccountID, order.DiscountAmount); err != nil {
		uc.metrics.CheckoutTotal.WithLabelValues(constants.CheckResultError).Inc()
		uc.failOrder(ctx, order.OrderID, err)
		return nil, err
	}

	uc.metrics.CheckoutTotal.WithLabelValues(constants.CheckResultAllowed).Inc()
	uc.log.Infof("order placed: order_id=%s, external_order_id=%s, total=%d", order.OrderID, orderReply.ExternalOrderID, order.Total)

	return &OrderConfirmation{
		OrderID:         order.OrderID,
		ExternalOrderID: orderReply.ExternalOrderID,
		PaymentLinkURL:  linkReply.URL,
		Subtotal:        order.Subtotal,
		DiscountAmount:  order.DiscountAmount,
		Total:           order.Total,
	}, nil
}

// failOrder 给订单加错误注记，订单停留在当前可恢复状态
func (uc *CheckoutUseCase) failOrder(ctx context.Context, orderID string, cause error) {
	if err := uc.repo.MarkFailed(ctx, orderID, cause.Error()); err != nil {
		uc.log.Errorf("failed to annotate order %s: %v", orderID, err)
	}
}

// HandlePaymentResult 处理支付结果（MQ 事件或回调，两条路径都幂等）
// 首次迁移到 paid 时按件数发放购买赠送积分
func (uc *CheckoutUseCase) HandlePaymentResult(ctx context.Context, event *PaymentEvent) error {
	order, err := uc.lookupOrder(ctx, event)
	if err != nil {
		return err
	}

	switch event.Status {
	case constants.PaymentStatusPaid:
		paid, alreadyPaid, err := uc.repo.MarkPaid(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if alreadyPaid {
			uc.log.Infof("payment already processed: order_id=%s", order.OrderID)
			return nil
		}
		uc.grantPurchaseBonus(ctx, paid)
		return nil
	case constants.PaymentStatusAbandoned:
		return uc.repo.MarkAbandoned(ctx, order.OrderID)
	default:
		uc.log.Warnf("ignoring payment event with status %s: order_id=%s", event.Status, order.OrderID)
		return nil
	}
}

func (uc *CheckoutUseCase) lookupOrder(ctx context.Context, event *PaymentEvent) (*Order, error) {
	if event.OrderID != "" {
		order, err := uc.repo.GetOrder(ctx, event.OrderID)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	if event.ExternalOrderID != "" {
		order, err := uc.repo.GetOrderByExternalID(ctx, event.ExternalOrderID)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	return nil, creditErrors.ErrorOrderNotFound("order not found: order_id=%s, external_order_id=%s", event.OrderID, event.ExternalOrderID)
}

// grantPurchaseBonus 按购买件数发放赠送积分，游客订单没有账户可发，跳过
func (uc *CheckoutUseCase) grantPurchaseBonus(ctx context.Context, order *Order) {
	if order.AccountID == nil || uc.conf.PurchaseBonusPerItem <= 0 {
		return
	}

	var quantity int64
	for _, item := range order.Items {
		quantity += item.Quantity
	}
	bonus := uc.conf.PurchaseBonusPerItem * quantity
	if bonus <= 0 {
		return
	}

	_, err := uc.credit.Grant(ctx, *order.AccountID, bonus, constants.TxKindPurchaseBonus, "purchase bonus",
		map[string]interface{}{"order_id": order.OrderID, "quantity": quantity})
	if err != nil {
		// 赠送失败不回滚支付状态，留给对账任务补发
		uc.log.Errorf("purchase bonus grant failed: order_id=%s, error=%v", order.OrderID, err)
	}
}
