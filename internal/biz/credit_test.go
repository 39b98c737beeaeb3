package biz

import (
	"context"
	"testing"
	"time"

	"credit-service/internal/clock"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCreditUseCaseFixture() (*fakeCreditRepo, *CreditUseCase, *clock.FakeClock) {
	repo := newFakeCreditRepo()
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	uc := NewCreditUseCase(repo, testConfig(), clk, testLogger())
	return repo, uc, clk
}

func TestGetOrInitAccountNew(t *testing.T) {
	_, uc, clk := newCreditUseCaseFixture()

	account, err := uc.GetOrInitAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)
	assert.Equal(t, int64(100), account.MonthlyAllocation)
	assert.Equal(t, int64(50), account.WelcomeAllocation)
	assert.Equal(t, int64(0), account.WelcomeUsed)
	assert.Equal(t, int64(100), account.LifetimeGranted)
	assert.True(t, account.LastMonthlyResetAt.Equal(clk.Now()))
}

func TestGetOrInitAccountLazyReset(t *testing.T) {
	repo, uc, clk := newCreditUseCaseFixture()
	ctx := context.Background()

	_, err := uc.GetOrInitAccount(ctx, "acc-1")
	require.NoError(t, err)

	// 同月内不重置
	_, err = uc.GetOrInitAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, repo.resetCalls)

	// 跨月后第一次访问触发惰性重置
	clk.Set(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	account, err := uc.GetOrInitAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.resetCalls)
	assert.Equal(t, int64(100), account.Balance)

	// 重置只发生一次
	_, err = uc.GetOrInitAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.resetCalls)
}

func TestCheckBalance(t *testing.T) {
	_, uc, _ := newCreditUseCaseFixture()
	ctx := context.Background()

	t.Run("priced action", func(t *testing.T) {
		sufficient, balance, cost, err := uc.CheckBalance(ctx, "acc-1", "flux-pro")
		require.NoError(t, err)
		assert.True(t, sufficient)
		assert.Equal(t, int64(100), balance)
		assert.Equal(t, int64(4), cost)
	})

	t.Run("unknown action uses default cost", func(t *testing.T) {
		_, _, cost, err := uc.CheckBalance(ctx, "acc-1", "some-new-model")
		require.NoError(t, err)
		assert.Equal(t, int64(1), cost)
	})
}

func TestDeductUseCase(t *testing.T) {
	repo, uc, _ := newCreditUseCaseFixture()
	ctx := context.Background()

	newBalance, cost, err := uc.Deduct(ctx, "acc-1", "flux-pro", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cost)
	assert.Equal(t, int64(96), newBalance)

	// 余额耗尽后返回类型化错误
	repo.accounts["acc-1"].Balance = 3
	_, _, err = uc.Deduct(ctx, "acc-1", "flux-pro", nil)
	require.Error(t, err)
	assert.True(t, creditErrors.IsInsufficientBalance(err))
}

func TestGrantRejectsNegativeAmount(t *testing.T) {
	_, uc, _ := newCreditUseCaseFixture()

	_, err := uc.Grant(context.Background(), "acc-1", -5, constants.TxKindManualGrant, "oops", nil)
	require.Error(t, err)
	assert.True(t, creditErrors.IsInvariantViolation(err))
}

func TestReplayBalanceDetectsMismatch(t *testing.T) {
	repo, uc, _ := newCreditUseCaseFixture()
	ctx := context.Background()

	_, err := uc.GetOrInitAccount(ctx, "acc-1")
	require.NoError(t, err)
	_, _, err = uc.Deduct(ctx, "acc-1", "flux-dev", nil)
	require.NoError(t, err)

	audit, err := uc.ReplayBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, int64(99), audit.Replayed)

	// 人为破坏账本
	repo.accounts["acc-1"].Balance = 42
	audit, err = uc.ReplayBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.Equal(t, int64(42), audit.Balance)
	assert.Equal(t, int64(99), audit.Replayed)
}

func TestResetMonthlyAllowancesSweep(t *testing.T) {
	repo, uc, clk := newCreditUseCaseFixture()
	ctx := context.Background()

	for _, id := range []string{"acc-1", "acc-2", "acc-3"} {
		_, err := uc.GetOrInitAccount(ctx, id)
		require.NoError(t, err)
	}

	// 同月扫描：没有账户需要重置
	count, err := uc.ResetMonthlyAllowances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	clk.Set(time.Date(2026, 4, 1, 0, 0, 30, 0, time.UTC))
	count, err = uc.ResetMonthlyAllowances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, repo.resetCalls)

	// 再跑一遍是 no-op
	count, err = uc.ResetMonthlyAllowances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
