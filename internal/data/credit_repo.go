package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountCacheTTL 账户缓存过期时间
const accountCacheTTL = 5 * time.Minute

// creditRepo 积分账本数据访问
// 所有余额变更都走带条件的 UPDATE（balance >= cost / welcome_used = 0 /
// last_monthly_reset_at < monthStart），并发下条件不满足的写入影响 0 行，
// 余额不可能为负；分布式锁只是减少无效竞争的手段，不是正确性前提
type creditRepo struct {
	data    *Data
	sync    *redsync.Redsync
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewCreditRepo 创建积分 repo（返回 biz.CreditRepo 接口）
func NewCreditRepo(data *Data, sync *redsync.Redsync, logger log.Logger) biz.CreditRepo {
	return &creditRepo{
		data:    data,
		sync:    sync,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// GetAccount 获取账户，不存在返回 nil 而不是错误
func (r *creditRepo) GetAccount(ctx context.Context, accountID string) (*biz.CreditAccount, error) {
	if accountID == "" {
		return nil, fmt.Errorf("accountID is required")
	}

	// 先尝试从 Redis 获取
	cacheKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, accountID)
	if r.data.rdb != nil {
		if cached, err := r.data.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var account biz.CreditAccount
			if err := json.Unmarshal([]byte(cached), &account); err == nil && account.AccountID == accountID {
				return &account, nil
			}
		}
	}

	// 缓存未命中，从数据库查询
	var m model.CreditAccount
	if err := r.data.db.WithContext(ctx).Where("account_id = ?", accountID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("GetAccount failed: account_id=%s, error=%v", accountID, err)
		return nil, fmt.Errorf("failed to query credit account: %w", err)
	}

	account := toDomainAccount(&m)

	// 更新缓存（异步，不阻塞，设置超时避免长时间等待）
	if r.data.rdb != nil {
		go func() {
			cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cacheCancel()
			r.setAccountCache(cacheCtx, account)
		}()
	}

	return account, nil
}

// CreateAccount 不存在则创建并写入初始发放流水
// 依赖 account_id 唯一索引 + insert-if-absent：并发创建只有一个请求
// 真正插入，其余请求影响 0 行且不会产生第二条初始流水
func (r *creditRepo) CreateAccount(ctx context.Context, account *biz.CreditAccount, initialReason string) (bool, error) {
	created := false
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := model.CreditAccount{
			CreditAccountID:    uuid.New().String(),
			AccountID:          account.AccountID,
			Balance:            account.Balance,
			MonthlyAllocation:  account.MonthlyAllocation,
			MonthlyUsed:        account.MonthlyUsed,
			LastMonthlyResetAt: account.LastMonthlyResetAt,
			WelcomeAllocation:  account.WelcomeAllocation,
			WelcomeUsed:        account.WelcomeUsed,
			LifetimeGranted:    account.LifetimeGranted,
			LifetimeSpent:      account.LifetimeSpent,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoNothing: true,
		}).Create(&m)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 并发创建被唯一索引挡下
			return nil
		}
		created = true
		return r.appendTransaction(tx, account.AccountID, account.Balance, account.Balance,
			constants.TxKindMonthlyReset, initialReason, nil)
	})
	if err != nil {
		return false, err
	}
	if created {
		r.updateAccountCache(account)
	}
	return created, nil
}

// ApplyMonthlyReset 月度重置
// balance 覆盖为 allocation（上月未用余额作废），流水金额记差值
// allocation - 旧余额，保证按创建顺序累加流水仍然等于当前余额；
// 条件同时卡 last_monthly_reset_at 与读到的旧余额，任何并发变更都会
// 让影响行数归零，此时返回 nil 交给下一次惰性重置重试
func (r *creditRepo) ApplyMonthlyReset(ctx context.Context, accountID string, allocation int64, monthStart, now time.Time) (*biz.CreditAccount, error) {
	var reset *biz.CreditAccount
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.CreditAccount
		if err := tx.Where("account_id = ?", accountID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return creditErrors.ErrorAccountNotFound("account %s not found", accountID)
			}
			return err
		}
		if !m.LastMonthlyResetAt.Before(monthStart) {
			// 本月已重置过
			return nil
		}

		result := tx.Model(&model.CreditAccount{}).
			Where("account_id = ? AND balance = ? AND last_monthly_reset_at < ?", accountID, m.Balance, monthStart).
			Updates(map[string]interface{}{
				"balance":               allocation,
				"monthly_allocation":    allocation,
				"monthly_used":          0,
				"last_monthly_reset_at": now,
				"lifetime_granted":      gorm.Expr("lifetime_granted + ?", allocation),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := r.appendTransaction(tx, accountID, allocation-m.Balance, allocation,
			constants.TxKindMonthlyReset, "monthly allocation reset", nil); err != nil {
			return err
		}

		reset = &biz.CreditAccount{
			AccountID:          accountID,
			Balance:            allocation,
			MonthlyAllocation:  allocation,
			MonthlyUsed:        0,
			LastMonthlyResetAt: now,
			WelcomeAllocation:  m.WelcomeAllocation,
			WelcomeUsed:        m.WelcomeUsed,
			LifetimeGranted:    m.LifetimeGranted + allocation,
			LifetimeSpent:      m.LifetimeSpent,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reset != nil {
		r.updateAccountCache(reset)
	}
	return reset, nil
}

// Deduct 扣减积分
// 检查与扣减是同一条 UPDATE：balance >= cost 才生效，不足时影响 0 行、
// 不产生任何写入；变更与流水追加在同一个事务内
func (r *creditRepo) Deduct(ctx context.Context, accountID string, cost int64, reason string, metadata map[string]interface{}) (int64, error) {
	// 获取分布式锁（按账户），失败不阻断，条件更新仍保证正确性
	if r.sync != nil {
		lockKey := fmt.Sprintf("%s%s", constants.RedisKeyDeductLock, accountID)
		lockStartTime := time.Now()
		mutex := r.sync.NewMutex(lockKey, redsync.WithExpiry(5*time.Second))
		if err := mutex.Lock(); err != nil {
			r.log.Warnf("failed to acquire deduct lock: account_id=%s, error=%v", accountID, err)
			r.metrics.LockAcquireTotal.WithLabelValues(constants.LockResultFailed).Inc()
		} else {
			r.metrics.LockAcquireTotal.WithLabelValues(constants.LockResultSuccess).Inc()
			defer func() {
				if ok, err := mutex.Unlock(); !ok || err != nil {
					r.log.Warnf("failed to unlock deduct lock: account_id=%s, error=%v", accountID, err)
				}
			}()
		}
		r.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
	}

	var updated *biz.CreditAccount
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.CreditAccount{}).
			Where("account_id = ? AND balance >= ?", accountID, cost).
			Updates(map[string]interface{}{
				"balance":        gorm.Expr("balance - ?", cost),
				"monthly_used":   gorm.Expr("monthly_used + ?", cost),
				"lifetime_spent": gorm.Expr("lifetime_spent + ?", cost),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var m model.CreditAccount
			if err := tx.Where("account_id = ?", accountID).First(&m).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return creditErrors.ErrorAccountNotFound("account %s not found", accountID)
				}
				return err
			}
			return creditErrors.ErrorInsufficientBalance("account %s balance %d is below cost %d", accountID, m.Balance, cost)
		}

		var m model.CreditAccount
		if err := tx.Where("account_id = ?", accountID).First(&m).Error; err != nil {
			return err
		}
		if err := r.appendTransaction(tx, accountID, -cost, m.Balance,
			constants.TxKindGenerationSpend, reason, metadata); err != nil {
			return err
		}
		updated = toDomainAccount(&m)
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.updateAccountCache(updated)
	return updated.Balance, nil
}

// Grant 发放积分（金额非负，账户存在则总是成功）
func (r *creditRepo) Grant(ctx context.Context, accountID string, amount int64, kind, reason string, metadata map[string]interface{}) (int64, error) {
	var updated *biz.CreditAccount
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.CreditAccount{}).
			Where("account_id = ?", accountID).
			Updates(map[string]interface{}{
				"balance":          gorm.Expr("balance + ?", amount),
				"lifetime_granted": gorm.Expr("lifetime_granted + ?", amount),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditErrors.ErrorAccountNotFound("account %s not found", accountID)
		}

		var m model.CreditAccount
		if err := tx.Where("account_id = ?", accountID).First(&m).Error; err != nil {
			return err
		}
		if err := r.appendTransaction(tx, accountID, amount, m.Balance, kind, reason, metadata); err != nil {
			return err
		}
		updated = toDomainAccount(&m)
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.updateAccountCache(updated)
	return updated.Balance, nil
}

// ApplyWelcomeBonus 一次性发放新用户赠送
// welcome_used = 0 是条件的一部分，重复调用影响 0 行并返回 WelcomeAlreadyUsed
func (r *creditRepo) ApplyWelcomeBonus(ctx context.Context, accountID string) (int64, int64, error) {
	var updated *biz.CreditAccount
	var amount int64
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.CreditAccount
		if err := tx.Where("account_id = ?", accountID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return creditErrors.ErrorAccountNotFound("account %s not found", accountID)
			}
			return err
		}
		if m.WelcomeAllocation <= 0 {
			return creditErrors.ErrorWelcomeAlreadyUsed("account %s has no welcome allocation", accountID)
		}

		result := tx.Model(&model.CreditAccount{}).
			Where("account_id = ? AND welcome_used = 0", accountID).
			Updates(map[string]interface{}{
				"balance":          gorm.Expr("balance + welcome_allocation"),
				"welcome_used":     gorm.Expr("welcome_allocation"),
				"lifetime_granted": gorm.Expr("lifetime_granted + welcome_allocation"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditErrors.ErrorWelcomeAlreadyUsed("welcome bonus already granted for account %s", accountID)
		}

		amount = m.WelcomeAllocation
		var after model.CreditAccount
		if err := tx.Where("account_id = ?", accountID).First(&after).Error; err != nil {
			return err
		}
		if err := r.appendTransaction(tx, accountID, amount, after.Balance,
			constants.TxKindWelcomeGrant, "welcome bonus", nil); err != nil {
			return err
		}
		updated = toDomainAccount(&after)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	r.updateAccountCache(updated)
	return updated.Balance, amount, nil
}

// ListTransactions 分页获取积分流水（最新在前）
func (r *creditRepo) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*biz.CreditTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.data.db.WithContext(ctx).Model(&model.CreditTransaction{}).
		Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.CreditTransaction
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	transactions := make([]*biz.CreditTransaction, 0, len(rows))
	for i := range rows {
		transactions = append(transactions, toDomainTransaction(&rows[i]))
	}
	return transactions, total, nil
}

// SumTransactions 累加账户全部流水金额（审计重放）
func (r *creditRepo) SumTransactions(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.data.db.WithContext(ctx).Model(&model.CreditTransaction{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// ListAccountIDs 列出全部账户ID（月度重置扫描）
func (r *creditRepo) ListAccountIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.data.db.WithContext(ctx).Model(&model.CreditAccount{}).
		Order("account_id").
		Pluck("account_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// appendTransaction 追加一条流水（调用方保证在余额变更同一事务内）
func (r *creditRepo) appendTransaction(tx *gorm.DB, accountID string, amount, balanceAfter int64, kind, reason string, metadata map[string]interface{}) error {
	var payload datatypes.JSON
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction metadata: %w", err)
		}
		payload = datatypes.JSON(b)
	}
	return tx.Create(&model.CreditTransaction{
		CreditTransactionID: uuid.New().String(),
		AccountID:           accountID,
		Amount:              amount,
		BalanceAfter:        balanceAfter,
		Kind:                kind,
		Reason:              reason,
		Metadata:            payload,
	}).Error
}

// updateAccountCache 变更后同步刷新缓存（设置超时避免阻塞）
func (r *creditRepo) updateAccountCache(account *biz.CreditAccount) {
	if account == nil || r.data.rdb == nil {
		return
	}
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cacheCancel()
	r.setAccountCache(cacheCtx, account)
}

func (r *creditRepo) setAccountCache(ctx context.Context, account *biz.CreditAccount) {
	b, err := json.Marshal(account)
	if err != nil {
		return
	}
	cacheKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, account.AccountID)
	if err := r.data.rdb.Set(ctx, cacheKey, string(b), accountCacheTTL).Err(); err != nil {
		// 缓存更新失败不影响主流程，只记录日志
		r.log.Warnf("failed to update account cache: account_id=%s, error=%v", account.AccountID, err)
	}
}

func toDomainAccount(m *model.CreditAccount) *biz.CreditAccount {
	return &biz.CreditAccount{
		AccountID:          m.AccountID,
		Balance:            m.Balance,
		MonthlyAllocation:  m.MonthlyAllocation,
		MonthlyUsed:        m.MonthlyUsed,
		LastMonthlyResetAt: m.LastMonthlyResetAt,
		WelcomeAllocation:  m.WelcomeAllocation,
		WelcomeUsed:        m.WelcomeUsed,
		LifetimeGranted:    m.LifetimeGranted,
		LifetimeSpent:      m.LifetimeSpent,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toDomainTransaction(m *model.CreditTransaction) *biz.CreditTransaction {
	var metadata map[string]interface{}
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	return &biz.CreditTransaction{
		ID:           m.CreditTransactionID,
		AccountID:    m.AccountID,
		Amount:       m.Amount,
		BalanceAfter: m.BalanceAfter,
		Kind:         m.Kind,
		Reason:       m.Reason,
		Metadata:     metadata,
		CreatedAt:    m.CreatedAt,
	}
}
