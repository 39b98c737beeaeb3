package service

import (
	"context"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// CheckoutService 结账对外服务
type CheckoutService struct {
	uc  *biz.CheckoutUseCase
	log *log.Helper
}

// NewCheckoutService 创建 CheckoutService
func NewCheckoutService(uc *biz.CheckoutUseCase, logger log.Logger) *CheckoutService {
	return &CheckoutService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// OrderItemInput 订单行项目
type OrderItemInput struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // 分
	Quantity  int64  `json:"quantity"`
}

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	Items     []OrderItemInput `json:"items"`
	Code      *string          `json:"code,omitempty"`
	AccountID *string          `json:"account_id,omitempty"` // 游客下单时为空
}

// PlaceOrderReply 下单响应
type PlaceOrderReply struct {
	OrderID         string `json:"order_id"`
	ExternalOrderID string `json:"external_order_id"`
	PaymentLinkURL  string `json:"payment_link_url"`
	Subtotal        int64  `json:"subtotal"`
	DiscountAmount  int64  `json:"discount_amount"`
	Total           int64  `json:"total"`
}

// PlaceOrder 定价并下单
func (s *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderReply, error) {
	items := make([]biz.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, biz.OrderItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	priced, err := s.uc.PriceOrder(ctx, items, req.Code, req.AccountID)
	if err != nil {
		return nil, err
	}

	confirmation, err := s.uc.PlaceOrder(ctx, priced)
	if err != nil {
		return nil, err
	}

	return &PlaceOrderReply{
		OrderID:         confirmation.OrderID,
		ExternalOrderID: confirmation.ExternalOrderID,
		PaymentLinkURL:  confirmation.PaymentLinkURL,
		Subtotal:        confirmation.Subtotal,
		DiscountAmount:  confirmation.DiscountAmount,
		Total:           confirmation.Total,
	}, nil
}

// PaymentWebhookRequest 支付结果回调请求（与 MQ 事件同构）
type PaymentWebhookRequest = biz.PaymentEvent

// PaymentWebhookReply 支付结果回调响应
type PaymentWebhookReply struct {
	OK bool `json:"ok"`
}

// HandlePaymentWebhook 处理支付结果回调（幂等）
func (s *CheckoutService) HandlePaymentWebhook(ctx context.Context, req *PaymentWebhookRequest) (*PaymentWebhookReply, error) {
	if err := s.uc.HandlePaymentResult(ctx, req); err != nil {
		s.log.Errorf("HandlePaymentWebhook failed: order_id=%s, error=%v", req.OrderID, err)
		return nil, err
	}
	return &PaymentWebhookReply{OK: true}, nil
}
