package data

import (
	"context"
	"testing"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func testBudget(agentID string) *domain.AgentBudget {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.AgentBudget{
		AgentID:        agentID,
		CurrentBalance: 10000,
		DailyLimit:     5000,
		PerActionLimit: 2000,
		SpentToday:     300,
		LastResetDate:  now.Format(domain.DateLayout),
		Timezone:       "UTC",
		Status:         domain.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TestBudgetCacheSeedAndGet 写入后读回，字段与版本号一致
func TestBudgetCacheSeedAndGet(t *testing.T) {
	cache := NewBudgetCache(newTestRedis(t))
	ctx := context.Background()

	_, err := cache.GetBudget(ctx, "agent-1")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	budget := testBudget("agent-1")
	require.NoError(t, cache.SeedBudget(ctx, budget))
	assert.Equal(t, int64(1), budget.Version)

	got, err := cache.GetBudget(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, budget.CurrentBalance, got.CurrentBalance)
	assert.Equal(t, budget.DailyLimit, got.DailyLimit)
	assert.Equal(t, budget.PerActionLimit, got.PerActionLimit)
	assert.Equal(t, budget.SpentToday, got.SpentToday)
	assert.Equal(t, budget.LastResetDate, got.LastResetDate)
	assert.Equal(t, budget.Status, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, budget.CreatedAt, got.CreatedAt)
}

// TestBudgetCacheCAS 版本匹配时写入并递增版本
func TestBudgetCacheCAS(t *testing.T) {
	cache := NewBudgetCache(newTestRedis(t))
	ctx := context.Background()

	budget := testBudget("agent-1")
	require.NoError(t, cache.SeedBudget(ctx, budget))

	budget.CurrentBalance -= 500
	budget.SpentToday += 500
	require.NoError(t, cache.CompareAndSwap(ctx, budget))
	assert.Equal(t, int64(2), budget.Version)

	got, err := cache.GetBudget(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9500), got.CurrentBalance)
	assert.Equal(t, int64(800), got.SpentToday)
	assert.Equal(t, int64(2), got.Version)
}

// TestBudgetCacheCASConflict 基于过期版本的写入被拒绝，余额不变
func TestBudgetCacheCASConflict(t *testing.T) {
	cache := NewBudgetCache(newTestRedis(t))
	ctx := context.Background()

	budget := testBudget("agent-1")
	require.NoError(t, cache.SeedBudget(ctx, budget))

	// 两个读者读到同一版本
	first, err := cache.GetBudget(ctx, "agent-1")
	require.NoError(t, err)
	second, err := cache.GetBudget(ctx, "agent-1")
	require.NoError(t, err)

	first.CurrentBalance -= 500
	require.NoError(t, cache.CompareAndSwap(ctx, first))

	// 后写者版本已过期
	second.CurrentBalance -= 9000
	err = cache.CompareAndSwap(ctx, second)
	require.Error(t, err)
	assert.True(t, cache.IsConflict(err))

	got, err := cache.GetBudget(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9500), got.CurrentBalance, "the losing write must not land")
}

// TestBudgetCacheReseed 回填覆盖旧值并重置版本
func TestBudgetCacheReseed(t *testing.T) {
	cache := NewBudgetCache(newTestRedis(t))
	ctx := context.Background()

	budget := testBudget("agent-1")
	require.NoError(t, cache.SeedBudget(ctx, budget))
	budget.CurrentBalance -= 500
	require.NoError(t, cache.CompareAndSwap(ctx, budget))

	fresh := testBudget("agent-1")
	fresh.CurrentBalance = 777
	require.NoError(t, cache.SeedBudget(ctx, fresh))

	got, err := cache.GetBudget(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, int64(777), got.CurrentBalance)
	assert.Equal(t, int64(1), got.Version)
}
