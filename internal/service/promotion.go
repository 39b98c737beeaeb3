package service

import (
	"context"
	"time"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// PromotionService 折扣码对外服务
type PromotionService struct {
	uc  *biz.PromotionUseCase
	log *log.Helper
}

// NewPromotionService 创建 PromotionService
func NewPromotionService(uc *biz.PromotionUseCase, logger log.Logger) *PromotionService {
	return &PromotionService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// ValidateDiscountRequest 折扣码校验请求
type ValidateDiscountRequest struct {
	Code      string  `json:"code"`
	Subtotal  int64   `json:"subtotal"` // 分
	AccountID *string `json:"account_id,omitempty"`
}

// ValidateDiscountReply 折扣码校验响应（校验失败时返回类型化错误）
type ValidateDiscountReply struct {
	Code           string `json:"code"`
	Kind           string `json:"kind"`
	Value          int64  `json:"value"`
	Subtotal       int64  `json:"subtotal"`
	DiscountAmount int64  `json:"discount_amount"`
	Total          int64  `json:"total"`
}

// ValidateDiscount 校验折扣码并计算折扣（只读，价格预览可重复调用）
func (s *PromotionService) ValidateDiscount(ctx context.Context, req *ValidateDiscountRequest) (*ValidateDiscountReply, error) {
	priced, err := s.uc.Validate(ctx, req.Code, req.Subtotal, req.AccountID)
	if err != nil {
		return nil, err
	}
	return &ValidateDiscountReply{
		Code:           priced.Code,
		Kind:           priced.Kind,
		Value:          priced.Value,
		Subtotal:       priced.Subtotal,
		DiscountAmount: priced.DiscountAmount,
		Total:          priced.Subtotal - priced.DiscountAmount,
	}, nil
}

// CreateDiscountCodeRequest 创建折扣码请求（管理端）
type CreateDiscountCodeRequest struct {
	Code              string     `json:"code"`
	Kind              string     `json:"kind"` // PERCENTAGE / FIXED_AMOUNT
	Value             int64      `json:"value"`
	MinOrderAmount    *int64     `json:"min_order_amount,omitempty"`
	MaxUses           *int64     `json:"max_uses,omitempty"`
	MaxUsesPerAccount *int64     `json:"max_uses_per_account,omitempty"`
	IsActive          bool       `json:"is_active"`
	StartsAt          *time.Time `json:"starts_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// CreateDiscountCodeReply 创建折扣码响应
type CreateDiscountCodeReply struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// CreateDiscountCode 创建折扣码（管理端）
func (s *PromotionService) CreateDiscountCode(ctx context.Context, req *CreateDiscountCodeRequest) (*CreateDiscountCodeReply, error) {
	code := &biz.DiscountCode{
		Code:              req.Code,
		Kind:              req.Kind,
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxUses:           req.MaxUses,
		MaxUsesPerAccount: req.MaxUsesPerAccount,
		IsActive:          req.IsActive,
		StartsAt:          req.StartsAt,
		ExpiresAt:         req.ExpiresAt,
	}
	if err := s.uc.CreateCode(ctx, code); err != nil {
		s.log.Errorf("CreateDiscountCode failed: %v", err)
		return nil, err
	}
	return &CreateDiscountCodeReply{
		ID:   code.ID,
		Code: code.Code,
	}, nil
}
