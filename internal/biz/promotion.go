package biz

import (
	"context"
	"strings"
	"time"

	"credit-service/internal/clock"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// DiscountCode 折扣码领域对象
type DiscountCode struct {
	ID                string
	Code              string // 大写
	Kind              string // PERCENTAGE / FIXED_AMOUNT
	Value             int64
	MinOrderAmount    *int64
	MaxUses           *int64
	MaxUsesPerAccount *int64
	UsedCount         int64
	IsActive          bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
}

// PricedDiscount 定价结果（只读，不产生任何状态变更）
type PricedDiscount struct {
	CodeID         string
	Code           string
	Kind           string
	Value          int64
	Subtotal       int64
	DiscountAmount int64
}

// DiscountRedemption 核销记录领域对象
type DiscountRedemption struct {
	ID            string
	CodeID        string
	AccountID     *string
	OrderID       string
	AppliedAmount int64
	CreatedAt     time.Time
}

// PromotionRepo 折扣码数据层接口（定义在 biz 层）
// Redeem 必须在一个事务内完成 used_count 的条件递增与核销记录插入，
// 递增以 used_count < max_uses 为条件，并发下全局上限不可能被突破
type PromotionRepo interface {
	GetCode(ctx context.Context, code string) (*DiscountCode, error)
	CountRedemptions(ctx context.Context, codeID, accountID string) (int64, error)
	Redeem(ctx context.Context, code *DiscountCode, orderID string, accountID *string, appliedAmount int64) error
	CreateCode(ctx context.Context, code *DiscountCode) error
}

// PromotionUseCase 折扣码业务逻辑
type PromotionUseCase struct {
	repo    PromotionRepo
	clk     clock.Clock
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewPromotionUseCase 创建折扣码 UseCase
func NewPromotionUseCase(repo PromotionRepo, clk clock.Clock, logger log.Logger) *PromotionUseCase {
	return &PromotionUseCase{
		repo:    repo,
		clk:     clk,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// NormalizeCode 折扣码归一化（大小写不敏感，统一大写）
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate 校验折扣码并计算折扣金额，只读，可安全重复调用（价格预览）
// 校验顺序固定，遇到第一个失败立即返回
func (uc *PromotionUseCase) Validate(ctx context.Context, code string, subtotal int64, accountID *string) (*PricedDiscount, error) {
	priced, err := uc.validate(ctx, code, subtotal, accountID)
	if err != nil {
		uc.metrics.DiscountValidateTotal.WithLabelValues(errors.Reason(err)).Inc()
		return nil, err
	}
	uc.metrics.DiscountValidateTotal.WithLabelValues("ok").Inc()
	return priced, nil
}

func (uc *PromotionUseCase) validate(ctx context.Context, rawCode string, subtotal int64, accountID *string) (*PricedDiscount, error) {
	code := NormalizeCode(rawCode)

	dc, err := uc.repo.GetCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := uc.clk.Now()
	switch {
	case dc == nil:
		return nil, creditErrors.ErrorCodeNotFound("discount code %s not found", code)
	case !dc.IsActive:
		return nil, creditErrors.ErrorCodeInactive("discount code %s is inactive", code)
	case dc.StartsAt != nil && dc.StartsAt.After(now):
		return nil, creditErrors.ErrorCodeNotYetStarted("discount code %s starts at %s", code, dc.StartsAt.Format(time.RFC3339))
	case dc.ExpiresAt != nil && dc.ExpiresAt.Before(now):
		return nil, creditErrors.ErrorCodeExpired("discount code %s expired at %s", code, dc.ExpiresAt.Format(time.RFC3339))
	case dc.MinOrderAmount != nil && subtotal < *dc.MinOrderAmount:
		return nil, creditErrors.ErrorBelowMinimum("order subtotal %d below minimum %d", subtotal, *dc.MinOrderAmount)
	case dc.MaxUses != nil && dc.UsedCount >= *dc.MaxUses:
		return nil, creditErrors.ErrorGlobalLimitReached("discount code %s usage limit reached", code)
	}

	if accountID != nil && dc.MaxUsesPerAccount != nil {
		used, err := uc.repo.CountRedemptions(ctx, dc.ID, *accountID)
		if err != nil {
			return nil, err
		}
		if used >= *dc.MaxUsesPerAccount {
			return nil, creditErrors.ErrorPerAccountLimitReached("discount code %s per-account limit reached", code)
		}
	}

	return &PricedDiscount{
		CodeID:         dc.ID,
		Code:           dc.Code,
		Kind:           dc.Kind,
		Value:          dc.Value,
		Subtotal:       subtotal,
		DiscountAmount: DiscountAmount(dc.Kind, dc.Value, subtotal),
	}, nil
}

// DiscountAmount 折扣金额计算
// 百分比向下取整；固定金额封顶到小计，折后不可能为负
func DiscountAmount(kind string, value, subtotal int64) int64 {
	switch kind {
	case constants.DiscountKindPercentage:
		return subtotal * value / 100
	case constants.DiscountKindFixedAmount:
		if value > subtotal {
			return subtotal
		}
		return value
	default:
		return 0
	}
}

// Redeem 核销折扣码（每个成功订单恰好调用一次）
// 先重新校验再核销并不足以挡住临界并发，真正的闸门是数据层的条件递增
func (uc *PromotionUseCase) Redeem(ctx context.Context, code *DiscountCode, orderID string, accountID *string, appliedAmount int64) error {
	err := uc.repo.Redeem(ctx, code, orderID, accountID, appliedAmount)
	if err != nil {
		uc.metrics.DiscountRedeemTotal.WithLabelValues(errors.Reason(err)).Inc()
		return err
	}
	uc.metrics.DiscountRedeemTotal.WithLabelValues("ok").Inc()
	uc.log.Infof("discount redeemed: code=%s, order_id=%s, amount=%d", code.Code, orderID, appliedAmount)
	return nil
}

// CreateCode 创建折扣码（管理端）
func (uc *PromotionUseCase) CreateCode(ctx context.Context, code *DiscountCode) error {
	code.Code = NormalizeCode(code.Code)
	return uc.repo.CreateCode(ctx, code)
}

// GetCode 按码值查询（管理端/结账编排使用）
func (uc *PromotionUseCase) GetCode(ctx context.Context, code string) (*DiscountCode, error) {
	return uc.repo.GetCode(ctx, NormalizeCode(code))
}
