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

func timePtr(t time.Time) *time.Time { return &t }

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }

func newPromotionFixture() (*fakePromotionRepo, *PromotionUseCase, *clock.FakeClock) {
	repo := newFakePromotionRepo()
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	uc := NewPromotionUseCase(repo, clk, testLogger())
	return repo, uc, clk
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
	assert.Equal(t, "SAVE10", NormalizeCode("Save10"))
}

func TestValidateRejections(t *testing.T) {
	repo, uc, clk := newPromotionFixture()
	ctx := context.Background()
	now := clk.Now()

	require.NoError(t, repo.CreateCode(ctx, &DiscountCode{
		Code: "INACTIVE", Kind: constants.DiscountKindPercentage, Value: 10, IsActive: false,
	}))
	require.NoError(t, repo.CreateCode(ctx, &DiscountCode{
		Code: "FUTURE", Kind: constants.DiscountKindPercentage, Value: 10, IsActive: true,
		StartsAt: timePtr(now.Add(time.Hour)),
	}))
	require.NoError(t, repo.CreateCode(ctx, &DiscountCode{
		Code: "PAST", Kind: constants.DiscountKindPercentage, Value: 10, IsActive: true,
		ExpiresAt: timePtr(now.Add(-time.Hour)),
	}))
	require.NoError(t, repo.CreateCode(ctx, &DiscountCode{
		Code: "BIGSPEND", Kind: constants.DiscountKindPercentage, Value: 10, IsActive: true,
		MinOrderAmount: i64(5000),
	}))
	require.NoError(t, repo.CreateCode(ctx, &DiscountCode{
		Code: "CAPPED", Kind: constants.DiscountKindPercentage, Value: 10, IsActive: true,
		MaxUses: i64(3), UsedCount: 3,
	}))
	require.NoError(t, repo.CreateCode(ctx, &DiscountCode{
		Code: "ONEEACH", Kind: constants.DiscountKindPercentage, Value: 10, IsActive: true,
		MaxUsesPerAccount: i64(1),
	}))
	repo.redemptions = append(repo.redemptions, &DiscountRedemption{
		CodeID: repo.codes["ONEEACH"].ID, AccountID: str("acc-1"), OrderID: "past-order",
	})

	cases := []struct {
		name    string
		code    string
		check   func(error) bool
		account *string
	}{
		{"unknown code", "NOPE", creditErrors.IsCodeNotFound, nil},
		{"inactive", "INACTIVE", creditErrors.IsCodeInactive, nil},
		{"not yet started", "FUTURE", creditErrors.IsCodeNotYetStarted, nil},
		{"expired", "PAST", creditErrors.IsCodeExpired, nil},
		{"below minimum", "BIGSPEND", creditErrors.IsBelowMinimum, nil},
		{"global limit", "CAPPED", creditErrors.IsGlobalLimitReached, nil},
		{"per-account limit", "ONEEACH", creditErrors.IsPerAccountLimitReached, str("acc-1")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Validate(ctx, tc.code, 1000, tc.account)
			require.Error(t, err)
			assert.True(t, tc.check(err))
		})
	}

	t.Run("per-account limit ignored for guests", func(t *testing.T) {
		priced, err := uc.Validate(ctx, "ONEEACH", 1000, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(100), priced.DiscountAmount)
	})
}

func TestValidateIsReadOnly(t *testing.T) {
	repo, uc, _ := newPromotionFixture()
	ctx := context.Background()

	require.NoError(t, repo.CreateCode(ctx, &DiscountCode{
		Code: "SAVE10", Kind: constants.DiscountKindPercentage, Value: 10, IsActive: true, MaxUses: i64(5),
	}))

	// 价格预览可重复调用，不消耗任何使用次数
	for i := 0; i < 10; i++ {
		priced, err := uc.Validate(ctx, "save10", 1059, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(105), priced.DiscountAmount)
	}
	assert.Equal(t, int64(0), repo.codes["SAVE10"].UsedCount)
	assert.Empty(t, repo.redemptions)
}

func TestDiscountAmount(t *testing.T) {
	cases := []struct {
		name     string
		kind     string
		value    int64
		subtotal int64
		want     int64
	}{
		{"percentage rounds down", constants.DiscountKindPercentage, 10, 1059, 105},
		{"percentage exact", constants.DiscountKindPercentage, 25, 1000, 250},
		{"percentage full", constants.DiscountKindPercentage, 100, 777, 777},
		{"fixed amount", constants.DiscountKindFixedAmount, 500, 3000, 500},
		{"fixed amount capped at subtotal", constants.DiscountKindFixedAmount, 5000, 3000, 3000},
		{"unknown kind", "MYSTERY", 10, 1000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DiscountAmount(tc.kind, tc.value, tc.subtotal))
		})
	}
}
