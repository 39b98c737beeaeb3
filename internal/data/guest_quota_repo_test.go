package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestQuotaConsume(t *testing.T) {
	data := newTestData(t)
	repo := NewGuestQuotaRepo(data, testLogger())
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	limit := 3

	t.Run("fresh session counts down", func(t *testing.T) {
		for i, wantRemaining := range []int{2, 1, 0} {
			decision, err := repo.Consume(ctx, "sess-1", "1.2.3.4", limit, window, start.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			assert.True(t, decision.Allowed)
			assert.Equal(t, wantRemaining, decision.Remaining)
		}
	})

	t.Run("exhausted session is denied without increment", func(t *testing.T) {
		decision, err := repo.Consume(ctx, "sess-1", "1.2.3.4", limit, window, start.Add(3*time.Minute))
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, 0, decision.Remaining)
		assert.True(t, decision.ResetsAt.Equal(start.Add(window)))

		quota, err := repo.GetQuota(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, limit, quota.Count)
	})

	t.Run("window resets after 24h", func(t *testing.T) {
		later := start.Add(window) // 恰好 24h，按新窗口处理
		decision, err := repo.Consume(ctx, "sess-1", "5.6.7.8", limit, window, later)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, limit-1, decision.Remaining)
		assert.True(t, decision.ResetsAt.Equal(later.Add(window)))

		quota, err := repo.GetQuota(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, 1, quota.Count)
		assert.Equal(t, "5.6.7.8", quota.LastIP)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		decision, err := repo.Consume(ctx, "sess-2", "1.2.3.4", limit, window, start)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, limit-1, decision.Remaining)
	})
}

func TestGuestQuotaGetMissing(t *testing.T) {
	data := newTestData(t)
	repo := NewGuestQuotaRepo(data, testLogger())

	quota, err := repo.GetQuota(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, quota)
}
