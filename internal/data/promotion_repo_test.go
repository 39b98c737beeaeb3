package data

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }

func createTestCode(t *testing.T, repo biz.PromotionRepo, code *biz.DiscountCode) *biz.DiscountCode {
	t.Helper()
	require.NoError(t, repo.CreateCode(context.Background(), code))
	return code
}

func TestRedeemGlobalCap(t *testing.T) {
	data := newTestData(t)
	repo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	code := createTestCode(t, repo, &biz.DiscountCode{
		Code:     "LAUNCH10",
		Kind:     "PERCENTAGE",
		Value:    10,
		MaxUses:  int64Ptr(5),
		IsActive: true,
	})

	for i := 0; i < 5; i++ {
		err := repo.Redeem(ctx, code, fmt.Sprintf("order-%d", i), nil, 100)
		require.NoError(t, err)
	}

	// 第 6 次被条件递增挡下
	err := repo.Redeem(ctx, code, "order-6", nil, 100)
	require.Error(t, err)
	assert.True(t, creditErrors.IsGlobalLimitReached(err))

	stored, err := repo.GetCode(ctx, "LAUNCH10")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.UsedCount)
}

// 并发核销：maxUses=5 与 15 个并发请求，恰好 5 次成功，其余 GlobalLimitReached
func TestRedeemGlobalCapConcurrent(t *testing.T) {
	data := newTestDataFile(t)
	repo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	code := createTestCode(t, repo, &biz.DiscountCode{
		Code:     "RACE5",
		Kind:     "PERCENTAGE",
		Value:    10,
		MaxUses:  int64Ptr(5),
		IsActive: true,
	})

	const workers = 15
	var wg sync.WaitGroup
	var succeeded, limited int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := repo.Redeem(ctx, code, fmt.Sprintf("order-%d", n), nil, 100)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case creditErrors.IsGlobalLimitReached(err):
				atomic.AddInt64(&limited, 1)
			default:
				t.Errorf("unexpected redeem error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(5), succeeded)
	assert.Equal(t, int64(10), limited)

	stored, err := repo.GetCode(ctx, "RACE5")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.UsedCount)

	var redemptions int64
	require.NoError(t, data.db.Model(&model.DiscountRedemption{}).
		Where("discount_code_id = ?", code.ID).Count(&redemptions).Error)
	assert.Equal(t, int64(5), redemptions)
}

func TestRedeemPerAccountCap(t *testing.T) {
	data := newTestData(t)
	repo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	code := createTestCode(t, repo, &biz.DiscountCode{
		Code:              "ONEPERUSER",
		Kind:              "FIXED_AMOUNT",
		Value:             500,
		MaxUsesPerAccount: int64Ptr(1),
		IsActive:          true,
	})

	require.NoError(t, repo.Redeem(ctx, code, "order-1", strPtr("acc-1"), 500))

	err := repo.Redeem(ctx, code, "order-2", strPtr("acc-1"), 500)
	require.Error(t, err)
	assert.True(t, creditErrors.IsPerAccountLimitReached(err))

	// 失败的核销整体回滚，used_count 不残留
	stored, err := repo.GetCode(ctx, "ONEPERUSER")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.UsedCount)

	// 其他账户不受影响
	require.NoError(t, repo.Redeem(ctx, code, "order-3", strPtr("acc-2"), 500))
}

// 停用状态必须原样落库：IsActive 字段不能带 gorm default 标签，
// 否则零值 false 会被插入跳过、落成 true
func TestCreateCodePersistsInactive(t *testing.T) {
	data := newTestData(t)
	repo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	createTestCode(t, repo, &biz.DiscountCode{
		Code:     "PAUSED",
		Kind:     "PERCENTAGE",
		Value:    10,
		IsActive: false,
	})

	stored, err := repo.GetCode(ctx, "PAUSED")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)
}

func TestRedeemInactiveCode(t *testing.T) {
	data := newTestData(t)
	repo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	code := createTestCode(t, repo, &biz.DiscountCode{
		Code:     "DISABLED",
		Kind:     "PERCENTAGE",
		Value:    10,
		IsActive: false,
	})

	err := repo.Redeem(ctx, code, "order-1", nil, 100)
	require.Error(t, err)
	assert.True(t, creditErrors.IsCodeInactive(err))
}

func TestRedeemDuplicateOrder(t *testing.T) {
	data := newTestData(t)
	repo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	code := createTestCode(t, repo, &biz.DiscountCode{
		Code:     "WELCOME5",
		Kind:     "FIXED_AMOUNT",
		Value:    500,
		IsActive: true,
	})

	require.NoError(t, repo.Redeem(ctx, code, "order-1", nil, 500))

	// order_id 唯一索引：一单只核销一次
	err := repo.Redeem(ctx, code, "order-1", nil, 500)
	require.Error(t, err)

	stored, err := repo.GetCode(ctx, "WELCOME5")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.UsedCount)
}

func TestGetCodeMissing(t *testing.T) {
	data := newTestData(t)
	repo := NewPromotionRepo(data, nil, testLogger())

	code, err := repo.GetCode(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, code)
}
