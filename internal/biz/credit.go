package biz

import (
	"context"
	"time"

	"credit-service/internal/clock"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// CreditAccount 账户积分领域对象
type CreditAccount struct {
	AccountID          string
	Balance            int64
	MonthlyAllocation  int64
	MonthlyUsed        int64
	LastMonthlyResetAt time.Time
	WelcomeAllocation  int64
	WelcomeUsed        int64
	LifetimeGranted    int64
	LifetimeSpent      int64
	UpdatedAt          time.Time
}

// CreditTransaction 积分流水领域对象
type CreditTransaction struct {
	ID           string
	AccountID    string
	Amount       int64
	BalanceAfter int64
	Kind         string
	Reason       string
	Metadata     map[string]interface{}
	CreatedAt    time.Time
}

// LedgerAudit 账本重放结果
type LedgerAudit struct {
	AccountID  string
	Balance    int64
	Replayed   int64 // 按创建顺序累加全部流水得到的余额
	Consistent bool
}

// CreditRepo 积分数据层接口（定义在 biz 层）
// Deduct/Grant/ApplyWelcomeBonus/ApplyMonthlyReset 必须是单个原子操作：
// 余额变更与流水追加在同一个数据库事务内完成
type CreditRepo interface {
	GetAccount(ctx context.Context, accountID string) (*CreditAccount, error)
	// CreateAccount 不存在则创建并写入初始发放流水；已存在时不做任何写入
	CreateAccount(ctx context.Context, account *CreditAccount, initialReason string) (created bool, err error)
	// ApplyMonthlyReset 月度重置：balance 覆盖为 allocation（未用余额作废），
	// 以 last_monthly_reset_at < monthStart 为条件保证并发下只生效一次
	ApplyMonthlyReset(ctx context.Context, accountID string, allocation int64, monthStart, now time.Time) (*CreditAccount, error)
	// Deduct 条件扣减：balance >= cost 才生效，否则返回 InsufficientBalance
	Deduct(ctx context.Context, accountID string, cost int64, reason string, metadata map[string]interface{}) (newBalance int64, err error)
	Grant(ctx context.Context, accountID string, amount int64, kind, reason string, metadata map[string]interface{}) (newBalance int64, err error)
	// ApplyWelcomeBonus 一次性发放新用户赠送，重复调用返回 WelcomeAlreadyUsed
	ApplyWelcomeBonus(ctx context.Context, accountID string) (newBalance, amount int64, err error)
	ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*CreditTransaction, int64, error)
	// SumTransactions 按创建顺序累加账户全部流水（审计重放）
	SumTransactions(ctx context.Context, accountID string) (int64, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// CreditUseCase 积分账本业务逻辑
type CreditUseCase struct {
	repo    CreditRepo
	conf    *CreditConfig
	clk     clock.Clock
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewCreditUseCase 创建积分 UseCase
func NewCreditUseCase(repo CreditRepo, conf *CreditConfig, clk clock.Clock, logger log.Logger) *CreditUseCase {
	return &CreditUseCase{
		repo:    repo,
		conf:    conf,
		clk:     clk,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// monthStart 返回 t 所在月份的起点（配置时区）
func (uc *CreditUseCase) monthStart(t time.Time) time.Time {
	local := t.In(uc.conf.Location)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, uc.conf.Location)
}

// sameMonth 判断两个时刻是否处于同一个日历月（配置时区）
func (uc *CreditUseCase) sameMonth(a, b time.Time) bool {
	la, lb := a.In(uc.conf.Location), b.In(uc.conf.Location)
	return la.Year() == lb.Year() && la.Month() == lb.Month()
}

// GetOrInitAccount 获取账户，必要时先做惰性月度重置；不存在则创建
// 创建依赖 account_id 唯一约束 + insert-if-absent，快速重复调用不会产生两条初始发放流水
func (uc *CreditUseCase) GetOrInitAccount(ctx context.Context, accountID string) (*CreditAccount, error) {
	now := uc.clk.Now()

	account, err := uc.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account == nil {
		fresh := &CreditAccount{
			AccountID:          accountID,
			Balance:            uc.conf.MonthlyAllocation,
			MonthlyAllocation:  uc.conf.MonthlyAllocation,
			MonthlyUsed:        0,
			LastMonthlyResetAt: now,
			WelcomeAllocation:  uc.conf.WelcomeBonus,
			WelcomeUsed:        0,
			LifetimeGranted:    uc.conf.MonthlyAllocation,
			LifetimeSpent:      0,
		}
		created, err := uc.repo.CreateAccount(ctx, fresh, "initial monthly allocation")
		if err != nil {
			return nil, err
		}
		if created {
			uc.log.Infof("credit account created: account_id=%s, balance=%d", accountID, fresh.Balance)
			return fresh, nil
		}
		// 并发创建被唯一约束挡下，重新读取
		account, err = uc.repo.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, creditErrors.ErrorAccountNotFound("account %s vanished after concurrent create", accountID)
		}
	}

	if !uc.sameMonth(account.LastMonthlyResetAt, now) {
		reset, err := uc.repo.ApplyMonthlyReset(ctx, accountID, uc.conf.MonthlyAllocation, uc.monthStart(now), now)
		if err != nil {
			return nil, err
		}
		if reset != nil {
			uc.metrics.GrantTotal.WithLabelValues(constants.TxKindMonthlyReset).Inc()
			uc.metrics.GrantAmount.WithLabelValues(constants.TxKindMonthlyReset).Add(float64(uc.conf.MonthlyAllocation))
			return reset, nil
		}
		// 另一个请求抢先完成了重置
		return uc.repo.GetAccount(ctx, accountID)
	}

	return account, nil
}

// CheckBalance 只读余额预检，cost 来自价格表，未知操作按默认单价
func (uc *CreditUseCase) CheckBalance(ctx context.Context, accountID, action string) (sufficient bool, balance, cost int64, err error) {
	startTime := uc.clk.Now()
	defer func() {
		uc.metrics.BalanceCheckDuration.WithLabelValues(action).Observe(time.Since(startTime).Seconds())
	}()

	cost = uc.conf.CostFor(action)

	account, err := uc.GetOrInitAccount(ctx, accountID)
	if err != nil {
		uc.metrics.BalanceCheckTotal.WithLabelValues(action, constants.CheckResultError).Inc()
		return false, 0, cost, err
	}

	sufficient = account.Balance >= cost
	if sufficient {
		uc.metrics.BalanceCheckTotal.WithLabelValues(action, constants.CheckResultAllowed).Inc()
	} else {
		uc.metrics.BalanceCheckTotal.WithLabelValues(action, constants.CheckResultDenied).Inc()
	}
	return sufficient, account.Balance, cost, nil
}

// Deduct 扣减积分
// 检查与扣减在数据层同一个事务内完成，余额不足返回 InsufficientBalance 且不产生任何写入
func (uc *CreditUseCase) Deduct(ctx context.Context, accountID, action string, metadata map[string]interface{}) (newBalance, cost int64, err error) {
	startTime := uc.clk.Now()
	cost = uc.conf.CostFor(action)

	if _, err = uc.GetOrInitAccount(ctx, accountID); err != nil {
		return 0, cost, err
	}

	newBalance, err = uc.repo.Deduct(ctx, accountID, cost, action, metadata)

	uc.metrics.DeductDuration.WithLabelValues(action).Observe(time.Since(startTime).Seconds())
	if err != nil {
		if creditErrors.IsInsufficientBalance(err) {
			uc.metrics.DeductTotal.WithLabelValues(action, constants.CheckResultDenied).Inc()
		} else {
			uc.metrics.DeductTotal.WithLabelValues(action, constants.CheckResultError).Inc()
		}
		return 0, cost, err
	}

	uc.metrics.DeductTotal.WithLabelValues(action, constants.CheckResultAllowed).Inc()
	uc.metrics.DeductAmount.WithLabelValues(action).Add(float64(cost))
	return newBalance, cost, nil
}

// Grant 发放积分（金额非负，总是成功）
func (uc *CreditUseCase) Grant(ctx context.Context, accountID string, amount int64, kind, reason string, metadata map[string]interface{}) (int64, error) {
	if amount < 0 {
		return 0, creditErrors.ErrorInvariantViolation("grant amount must be non-negative, got %d", amount)
	}

	if _, err := uc.GetOrInitAccount(ctx, accountID); err != nil {
		return 0, err
	}

	newBalance, err := uc.repo.Grant(ctx, accountID, amount, kind, reason, metadata)
	if err != nil {
		return 0, err
	}

	uc.metrics.GrantTotal.WithLabelValues(kind).Inc()
	uc.metrics.GrantAmount.WithLabelValues(kind).Add(float64(amount))
	uc.log.Infof("credits granted: account_id=%s, amount=%d, kind=%s", accountID, amount, kind)
	return newBalance, nil
}

// GrantWelcomeBonus 发放一次性新用户赠送（welcome 池），重复发放返回 WelcomeAlreadyUsed
func (uc *CreditUseCase) GrantWelcomeBonus(ctx context.Context, accountID string) (int64, error) {
	if _, err := uc.GetOrInitAccount(ctx, accountID); err != nil {
		return 0, err
	}

	newBalance, amount, err := uc.repo.ApplyWelcomeBonus(ctx, accountID)
	if err != nil {
		return 0, err
	}

	uc.metrics.GrantTotal.WithLabelValues(constants.TxKindWelcomeGrant).Inc()
	uc.metrics.GrantAmount.WithLabelValues(constants.TxKindWelcomeGrant).Add(float64(amount))
	uc.log.Infof("welcome bonus granted: account_id=%s, amount=%d", accountID, amount)
	return newBalance, nil
}

// ListTransactions 获取积分流水
func (uc *CreditUseCase) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*CreditTransaction, int64, error) {
	return uc.repo.ListTransactions(ctx, accountID, page, pageSize)
}

// ReplayBalance 审计重放：累加账户全部流水并与当前余额比对
// 不一致说明账本被破坏，返回的 audit 仍然携带两侧数值供排查
func (uc *CreditUseCase) ReplayBalance(ctx context.Context, accountID string) (*LedgerAudit, error) {
	account, err := uc.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, creditErrors.ErrorAccountNotFound("account %s not found", accountID)
	}

	replayed, err := uc.repo.SumTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	audit := &LedgerAudit{
		AccountID:  accountID,
		Balance:    account.Balance,
		Replayed:   replayed,
		Consistent: replayed == account.Balance,
	}
	if !audit.Consistent {
		uc.log.Errorf("ledger replay mismatch: account_id=%s, balance=%d, replayed=%d", accountID, account.Balance, replayed)
	}
	return audit, nil
}

// ResetMonthlyAllowances 月度重置扫描（每月1日执行）
// 对所有已知账户应用日历月重置；漏扫的账户仍由 GetOrInitAccount 的惰性重置兜底
func (uc *CreditUseCase) ResetMonthlyAllowances(ctx context.Context) (int, error) {
	now := uc.clk.Now()
	monthStart := uc.monthStart(now)

	accountIDs, err := uc.repo.ListAccountIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(accountIDs) == 0 {
		uc.log.Info("no credit accounts found, skip reset")
		return 0, nil
	}

	resetCount := 0
	for _, accountID := range accountIDs {
		reset, err := uc.repo.ApplyMonthlyReset(ctx, accountID, uc.conf.MonthlyAllocation, monthStart, now)
		if err != nil {
			uc.log.Warnf("monthly reset failed for account %s: %v", accountID, err)
			continue
		}
		if reset != nil {
			resetCount++
		}
	}

	uc.log.Infof("monthly reset sweep completed: total=%d, reset=%d", len(accountIDs), resetCount)
	return resetCount, nil
}
