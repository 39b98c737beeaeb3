package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// promotionRepo 折扣码数据访问
type promotionRepo struct {
	data *Data
	sync *redsync.Redsync
	log  *log.Helper
}

// NewPromotionRepo 创建折扣码 repo（返回 biz.PromotionRepo 接口）
func NewPromotionRepo(data *Data, sync *redsync.Redsync, logger log.Logger) biz.PromotionRepo {
	return &promotionRepo{
		data: data,
		sync: sync,
		log:  log.NewHelper(logger),
	}
}

// GetCode 按码值查询，不存在返回 nil
func (r *promotionRepo) GetCode(ctx context.Context, code string) (*biz.DiscountCode, error) {
	var m model.DiscountCode
	if err := r.data.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainCode(&m), nil
}

// CountRedemptions 统计某账户对某折扣码的核销次数
func (r *promotionRepo) CountRedemptions(ctx context.Context, codeID, accountID string) (int64, error) {
	var count int64
	err := r.data.db.WithContext(ctx).Model(&model.DiscountRedemption{}).
		Where("discount_code_id = ? AND account_id = ?", codeID, accountID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Redeem 核销折扣码
// used_count 递增以 used_count < max_uses 为条件，全局上限在任何并发下
// 都不会被突破；递增持有折扣码行锁，随后的单账户上限检查在同一事务内
// 是串行的；order_id 唯一索引保证一单只核销一次
func (r *promotionRepo) Redeem(ctx context.Context, code *biz.DiscountCode, orderID string, accountID *string, appliedAmount int64) error {
	// 获取分布式锁（按码值），失败不阻断，条件递增仍保证正确性
	if r.sync != nil {
		lockKey := fmt.Sprintf("%s%s", constants.RedisKeyRedeemLock, code.Code)
		mutex := r.sync.NewMutex(lockKey, redsync.WithExpiry(5*time.Second))
		if err := mutex.Lock(); err != nil {
			r.log.Warnf("failed to acquire redeem lock: code=%s, error=%v", code.Code, err)
		} else {
			defer func() {
				if ok, err := mutex.Unlock(); !ok || err != nil {
					r.log.Warnf("failed to unlock redeem lock: code=%s, error=%v", code.Code, err)
				}
			}()
		}
	}

	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return redeemInTx(tx, code, orderID, accountID, appliedAmount)
	})
}

// redeemInTx 在给定事务内执行核销，供结账的跨表事务复用
func redeemInTx(tx *gorm.DB, code *biz.DiscountCode, orderID string, accountID *string, appliedAmount int64) error {
	result := tx.Model(&model.DiscountCode{}).
		Where("discount_code_id = ? AND is_active = ? AND (max_uses IS NULL OR used_count < max_uses)", code.ID, true).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var m model.DiscountCode
		if err := tx.Where("discount_code_id = ?", code.ID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return creditErrors.ErrorCodeNotFound("discount code %s not found", code.Code)
			}
			return err
		}
		if !m.IsActive {
			return creditErrors.ErrorCodeInactive("discount code %s is inactive", code.Code)
		}
		return creditErrors.ErrorGlobalLimitReached("discount code %s usage limit reached", code.Code)
	}

	if accountID != nil && code.MaxUsesPerAccount != nil {
		var used int64
		if err := tx.Model(&model.DiscountRedemption{}).
			Where("discount_code_id = ? AND account_id = ?", code.ID, *accountID).
			Count(&used).Error; err != nil {
			return err
		}
		if used >= *code.MaxUsesPerAccount {
			// 回滚事务，递增一并撤销
			return creditErrors.ErrorPerAccountLimitReached("discount code %s per-account limit reached", code.Code)
		}
	}

	return tx.Create(&model.DiscountRedemption{
		DiscountRedemptionID: uuid.New().String(),
		DiscountCodeID:       code.ID,
		AccountID:            accountID,
		OrderID:              orderID,
		AppliedAmount:        appliedAmount,
	}).Error
}

// CreateCode 创建折扣码（管理端）
func (r *promotionRepo) CreateCode(ctx context.Context, code *biz.DiscountCode) error {
	m := model.DiscountCode{
		DiscountCodeID:    uuid.New().String(),
		Code:              code.Code,
		Kind:              code.Kind,
		Value:             code.Value,
		MinOrderAmount:    code.MinOrderAmount,
		MaxUses:           code.MaxUses,
		MaxUsesPerAccount: code.MaxUsesPerAccount,
		UsedCount:         0,
		IsActive:          code.IsActive,
		StartsAt:          code.StartsAt,
		ExpiresAt:         code.ExpiresAt,
	}
	if err := r.data.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	code.ID = m.DiscountCodeID
	return nil
}

func toDomainCode(m *model.DiscountCode) *biz.DiscountCode {
	return &biz.DiscountCode{
		ID:                m.DiscountCodeID,
		Code:              m.Code,
		Kind:              m.Kind,
		Value:             m.Value,
		MinOrderAmount:    m.MinOrderAmount,
		MaxUses:           m.MaxUses,
		MaxUsesPerAccount: m.MaxUsesPerAccount,
		UsedCount:         m.UsedCount,
		IsActive:          m.IsActive,
		StartsAt:          m.StartsAt,
		ExpiresAt:         m.ExpiresAt,
	}
}
