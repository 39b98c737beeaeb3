package biz

import (
	"context"
	"fmt"
	"io"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

func testConfig() *CreditConfig {
	return &CreditConfig{
		MonthlyAllocation:    100,
		WelcomeBonus:         50,
		DefaultCost:          1,
		Prices:               map[string]int64{"flux-dev": 1, "flux-pro": 4},
		GuestDailyLimit:      3,
		PurchaseBonusPerItem: 5,
		Location:             time.UTC,
	}
}

// fakeCreditRepo 内存版积分账本，行为与数据层的条件更新语义一致
type fakeCreditRepo struct {
	accounts     map[string]*CreditAccount
	transactions map[string][]*CreditTransaction
	resetCalls   int
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{
		accounts:     make(map[string]*CreditAccount),
		transactions: make(map[string][]*CreditTransaction),
	}
}

func (f *fakeCreditRepo) append(accountID string, amount, balanceAfter int64, kind, reason string) {
	f.transactions[accountID] = append(f.transactions[accountID], &CreditTransaction{
		ID:           fmt.Sprintf("tx-%s-%d", accountID, len(f.transactions[accountID])),
		AccountID:    accountID,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Kind:         kind,
		Reason:       reason,
	})
}

func (f *fakeCreditRepo) GetAccount(_ context.Context, accountID string) (*CreditAccount, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (f *fakeCreditRepo) CreateAccount(_ context.Context, account *CreditAccount, initialReason string) (bool, error) {
	if _, ok := f.accounts[account.AccountID]; ok {
		return false, nil
	}
	copied := *account
	f.accounts[account.AccountID] = &copied
	f.append(account.AccountID, account.Balance, account.Balance, constants.TxKindMonthlyReset, initialReason)
	return true, nil
}

func (f *fakeCreditRepo) ApplyMonthlyReset(_ context.Context, accountID string, allocation int64, monthStart, now time.Time) (*CreditAccount, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, creditErrors.ErrorAccountNotFound("account %s not found", accountID)
	}
	if !account.LastMonthlyResetAt.Before(monthStart) {
		return nil, nil
	}
	f.resetCalls++
	f.append(accountID, allocation-account.Balance, allocation, constants.TxKindMonthlyReset, "monthly allocation reset")
	account.Balance = allocation
	account.MonthlyAllocation = allocation
	account.MonthlyUsed = 0
	account.LastMonthlyResetAt = now
	account.LifetimeGranted += allocation
	copied := *account
	return &copied, nil
}

func (f *fakeCreditRepo) Deduct(_ context.Context, accountID string, cost int64, reason string, _ map[string]interface{}) (int64, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return 0, creditErrors.ErrorAccountNotFound("account %s not found", accountID)
	}
	if account.Balance < cost {
		return 0, creditErrors.ErrorInsufficientBalance("account %s balance %d is below cost %d", accountID, account.Balance, cost)
	}
	account.Balance -= cost
	account.MonthlyUsed += cost
	account.LifetimeSpent += cost
	f.append(accountID, -cost, account.Balance, constants.TxKindGenerationSpend, reason)
	return account.Balance, nil
}

func (f *fakeCreditRepo) Grant(_ context.Context, accountID string, amount int64, kind, reason string, _ map[string]interface{}) (int64, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return 0, creditErrors.ErrorAccountNotFound("account %s not found", accountID)
	}
	account.Balance += amount
	account.LifetimeGranted += amount
	f.append(accountID, amount, account.Balance, kind, reason)
	return account.Balance, nil
}

func (f *fakeCreditRepo) ApplyWelcomeBonus(_ context.Context, accountID string) (int64, int64, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return 0, 0, creditErrors.ErrorAccountNotFound("account %s not found", accountID)
	}
	if account.WelcomeUsed != 0 || account.WelcomeAllocation <= 0 {
		return 0, 0, creditErrors.ErrorWelcomeAlreadyUsed("welcome bonus already granted for account %s", accountID)
	}
	account.Balance += account.WelcomeAllocation
	account.WelcomeUsed = account.WelcomeAllocation
	account.LifetimeGranted += account.WelcomeAllocation
	f.append(accountID, account.WelcomeAllocation, account.Balance, constants.TxKindWelcomeGrant, "welcome bonus")
	return account.Balance, account.WelcomeAllocation, nil
}

func (f *fakeCreditRepo) ListTransactions(_ context.Context, accountID string, page, pageSize int) ([]*CreditTransaction, int64, error) {
	all := f.transactions[accountID]
	return all, int64(len(all)), nil
}

func (f *fakeCreditRepo) SumTransactions(_ context.Context, accountID string) (int64, error) {
	var sum int64
	for _, tx := range f.transactions[accountID] {
		sum += tx.Amount
	}
	return sum, nil
}

func (f *fakeCreditRepo) ListAccountIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.accounts))
	for id := range f.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

// fakePromotionRepo 内存版折扣码存储
type fakePromotionRepo struct {
	codes       map[string]*DiscountCode
	redemptions []*DiscountRedemption
}

func newFakePromotionRepo() *fakePromotionRepo {
	return &fakePromotionRepo{codes: make(map[string]*DiscountCode)}
}

func (f *fakePromotionRepo) GetCode(_ context.Context, code string) (*DiscountCode, error) {
	dc, ok := f.codes[code]
	if !ok {
		return nil, nil
	}
	copied := *dc
	return &copied, nil
}

func (f *fakePromotionRepo) CountRedemptions(_ context.Context, codeID, accountID string) (int64, error) {
	var count int64
	for _, redemption := range f.redemptions {
		if redemption.CodeID == codeID && redemption.AccountID != nil && *redemption.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (f *fakePromotionRepo) Redeem(_ context.Context, code *DiscountCode, orderID string, accountID *string, appliedAmount int64) error {
	stored, ok := f.codes[code.Code]
	if !ok {
		return creditErrors.ErrorCodeNotFound("discount code %s not found", code.Code)
	}
	if stored.MaxUses != nil && stored.UsedCount >= *stored.MaxUses {
		return creditErrors.ErrorGlobalLimitReached("discount code %s usage limit reached", code.Code)
	}
	stored.UsedCount++
	f.redemptions = append(f.redemptions, &DiscountRedemption{
		CodeID:        stored.ID,
		AccountID:     accountID,
		OrderID:       orderID,
		AppliedAmount: appliedAmount,
	})
	return nil
}

func (f *fakePromotionRepo) CreateCode(_ context.Context, code *DiscountCode) error {
	if code.ID == "" {
		code.ID = fmt.Sprintf("code-%d", len(f.codes)+1)
	}
	copied := *code
	f.codes[code.Code] = &copied
	return nil
}
