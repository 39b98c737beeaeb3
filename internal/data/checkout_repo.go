package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// checkoutRepo 本地订单数据访问
// 状态迁移全部是带当前状态条件的 UPDATE，重复事件影响 0 行，天然幂等
type checkoutRepo struct {
	data *Data
	log  *log.Helper
}

// NewCheckoutRepo 创建结账 repo（返回 biz.CheckoutRepo 接口）
func NewCheckoutRepo(data *Data, logger log.Logger) biz.CheckoutRepo {
	return &checkoutRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateOrder 落库本地订单（pending）
func (r *checkoutRepo) CreateOrder(ctx context.Context, order *biz.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	return r.data.db.WithContext(ctx).Create(&model.StoreOrder{
		OrderID:        order.OrderID,
		AccountID:      order.AccountID,
		Items:          datatypes.JSON(items),
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		Total:          order.Total,
		DiscountCodeID: order.DiscountCodeID,
		Status:         constants.OrderStatusPending,
		IdempotencyKey: order.IdempotencyKey,
	}).Error
}

// GetOrder 获取订单，不存在返回 nil
func (r *checkoutRepo) GetOrder(ctx context.Context, orderID string) (*biz.Order, error) {
	var m model.StoreOrder
	if err := r.data.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainOrder(&m)
}

// GetOrderByExternalID 按外部订单号获取订单，不存在返回 nil
func (r *checkoutRepo) GetOrderByExternalID(ctx context.Context, externalOrderID string) (*biz.Order, error) {
	var m model.StoreOrder
	if err := r.data.db.WithContext(ctx).Where("external_order_id = ?", externalOrderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainOrder(&m)
}

// MarkRecorded 外部订单创建成功：pending → recorded
func (r *checkoutRepo) MarkRecorded(ctx context.Context, orderID, externalOrderID string) error {
	result := r.data.db.WithContext(ctx).Model(&model.StoreOrder{}).
		Where("order_id = ? AND status = ?", orderID, constants.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":            constants.OrderStatusRecorded,
			"external_order_id": externalOrderID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return creditErrors.ErrorInvariantViolation("order %s is not pending, cannot mark recorded", orderID)
	}
	return nil
}

// MarkFailed 外部调用失败：仅追加错误注记，状态不变，等待人工/对账处理
func (r *checkoutRepo) MarkFailed(ctx context.Context, orderID, lastError string) error {
	if len(lastError) > 512 {
		lastError = lastError[:512]
	}
	return r.data.db.WithContext(ctx).Model(&model.StoreOrder{}).
		Where("order_id = ?", orderID).
		Update("last_error", lastError).Error
}

// FinalizeOrder 核销折扣码并落支付链接：recorded → link_created
// 核销与订单更新在同一个数据库事务内，要么同时生效要么都不生效
func (r *checkoutRepo) FinalizeOrder(ctx context.Context, orderID, linkID, linkURL string, code *biz.DiscountCode, accountID *string, appliedAmount int64) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if code != nil {
			if err := redeemInTx(tx, code, orderID, accountID, appliedAmount); err != nil {
				return err
			}
		}

		result := tx.Model(&model.StoreOrder{}).
			Where("order_id = ? AND status = ?", orderID, constants.OrderStatusRecorded).
			Updates(map[string]interface{}{
				"status":           constants.OrderStatusLinkCreated,
				"payment_link_id":  linkID,
				"payment_link_url": linkURL,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditErrors.ErrorInvariantViolation("order %s is not recorded, cannot finalize", orderID)
		}
		return nil
	})
}

// MarkPaid 支付成功：非 paid 状态迁移到 paid
// 已是 paid 时返回 alreadyPaid=true 且不做任何写入（重复事件幂等）
func (r *checkoutRepo) MarkPaid(ctx context.Context, orderID string) (*biz.Order, bool, error) {
	result := r.data.db.WithContext(ctx).Model(&model.StoreOrder{}).
		Where("order_id = ? AND status <> ?", orderID, constants.OrderStatusPaid).
		Update("status", constants.OrderStatusPaid)
	if result.Error != nil {
		return nil, false, result.Error
	}

	order, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order == nil {
		return nil, false, creditErrors.ErrorOrderNotFound("order %s not found", orderID)
	}
	if result.RowsAffected == 0 {
		return order, true, nil
	}
	return order, false, nil
}

// MarkAbandoned 放弃支付：paid/abandoned 之外的状态迁移到 abandoned
// 重复事件影响 0 行，同样幂等
func (r *checkoutRepo) MarkAbandoned(ctx context.Context, orderID string) error {
	result := r.data.db.WithContext(ctx).Model(&model.StoreOrder{}).
		Where("order_id = ? AND status NOT IN ?", orderID, []string{constants.OrderStatusPaid, constants.OrderStatusAbandoned}).
		Update("status", constants.OrderStatusAbandoned)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.data.db.WithContext(ctx).Model(&model.StoreOrder{}).
			Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return creditErrors.ErrorOrderNotFound("order %s not found", orderID)
		}
	}
	return nil
}

func toDomainOrder(m *model.StoreOrder) (*biz.Order, error) {
	var items []biz.OrderItem
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
		}
	}
	return &biz.Order{
		OrderID:         m.OrderID,
		AccountID:       m.AccountID,
		Items:           items,
		Subtotal:        m.Subtotal,
		DiscountAmount:  m.DiscountAmount,
		Total:           m.Total,
		DiscountCodeID:  m.DiscountCodeID,
		Status:          m.Status,
		IdempotencyKey:  m.IdempotencyKey,
		ExternalOrderID: m.ExternalOrderID,
		PaymentLinkID:   m.PaymentLinkID,
		PaymentLinkURL:  m.PaymentLinkURL,
		LastError:       m.LastError,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}
