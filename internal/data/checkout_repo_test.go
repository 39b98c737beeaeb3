package data

import (
	"context"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(orderID string, accountID *string) *biz.Order {
	return &biz.Order{
		OrderID:   orderID,
		AccountID: accountID,
		Items: []biz.OrderItem{
			{Name: "poster", UnitPrice: 1500, Quantity: 2},
		},
		Subtotal:       3000,
		Total:          3000,
		Status:         constants.OrderStatusPending,
		IdempotencyKey: "key-" + orderID,
	}
}

func TestOrderLifecycle(t *testing.T) {
	data := newTestData(t)
	repo := NewCheckoutRepo(data, testLogger())
	promo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	code := createTestCode(t, promo, &biz.DiscountCode{
		Code:     "SAVE10",
		Kind:     "PERCENTAGE",
		Value:    10,
		IsActive: true,
	})

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("order-1", strPtr("acc-1"))))

	order, err := repo.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, constants.OrderStatusPending, order.Status)
	assert.Len(t, order.Items, 1)

	require.NoError(t, repo.MarkRecorded(ctx, "order-1", "ext-1"))

	byExt, err := repo.GetOrderByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	require.NotNil(t, byExt)
	assert.Equal(t, "order-1", byExt.OrderID)
	assert.Equal(t, constants.OrderStatusRecorded, byExt.Status)

	// 核销 + 支付链接落库在同一个事务
	require.NoError(t, repo.FinalizeOrder(ctx, "order-1", "link-1", "https://pay.example/link-1", code, strPtr("acc-1"), 300))

	order, err = repo.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, constants.OrderStatusLinkCreated, order.Status)
	assert.Equal(t, "https://pay.example/link-1", order.PaymentLinkURL)

	stored, err := promo.GetCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.UsedCount)

	paid, alreadyPaid, err := repo.MarkPaid(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, alreadyPaid)
	assert.Equal(t, constants.OrderStatusPaid, paid.Status)

	// 重复支付事件幂等
	_, alreadyPaid, err = repo.MarkPaid(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, alreadyPaid)

	// 已支付订单不会被放弃事件改写
	require.NoError(t, repo.MarkAbandoned(ctx, "order-1"))
	order, err = repo.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, constants.OrderStatusPaid, order.Status)
}

func TestFinalizeOrderAtomicWithRedeem(t *testing.T) {
	data := newTestData(t)
	repo := NewCheckoutRepo(data, testLogger())
	promo := NewPromotionRepo(data, nil, testLogger())
	ctx := context.Background()

	// 单账户上限 1，第二单的核销必然失败
	code := createTestCode(t, promo, &biz.DiscountCode{
		Code:              "ONCE",
		Kind:              "FIXED_AMOUNT",
		Value:             500,
		MaxUsesPerAccount: int64Ptr(1),
		IsActive:          true,
	})
	require.NoError(t, promo.Redeem(ctx, code, "earlier-order", strPtr("acc-1"), 500))

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("order-2", strPtr("acc-1"))))
	require.NoError(t, repo.MarkRecorded(ctx, "order-2", "ext-2"))

	err := repo.FinalizeOrder(ctx, "order-2", "link-2", "https://pay.example/link-2", code, strPtr("acc-1"), 500)
	require.Error(t, err)
	assert.True(t, creditErrors.IsPerAccountLimitReached(err))

	// 核销失败时订单状态与 used_count 都不变
	order, err := repo.GetOrder(ctx, "order-2")
	require.NoError(t, err)
	assert.Equal(t, constants.OrderStatusRecorded, order.Status)
	assert.Empty(t, order.PaymentLinkURL)

	stored, err := promo.GetCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.UsedCount)
}

func TestMarkRecordedRequiresPending(t *testing.T) {
	data := newTestData(t)
	repo := NewCheckoutRepo(data, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("order-3", nil)))
	require.NoError(t, repo.MarkRecorded(ctx, "order-3", "ext-3"))

	err := repo.MarkRecorded(ctx, "order-3", "ext-3b")
	require.Error(t, err)
	assert.True(t, creditErrors.IsInvariantViolation(err))
}

func TestMarkFailedKeepsStatus(t *testing.T) {
	data := newTestData(t)
	repo := NewCheckoutRepo(data, testLogger())
	ctx := context.Background()

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("order-4", nil)))
	require.NoError(t, repo.MarkFailed(ctx, "order-4", "payment provider timeout"))

	order, err := repo.GetOrder(ctx, "order-4")
	require.NoError(t, err)
	assert.Equal(t, constants.OrderStatusPending, order.Status)
	assert.Equal(t, "payment provider timeout", order.LastError)
}

func TestMarkPaidUnknownOrder(t *testing.T) {
	data := newTestData(t)
	repo := NewCheckoutRepo(data, testLogger())

	_, _, err := repo.MarkPaid(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, creditErrors.IsOrderNotFound(err))
}
