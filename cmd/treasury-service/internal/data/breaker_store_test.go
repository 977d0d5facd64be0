package data

import (
	"context"
	"testing"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBreakerStoreDefaultUnfrozen 键不存在视为未冻结
func TestBreakerStoreDefaultUnfrozen(t *testing.T) {
	store := NewBreakerStore(newTestRedis(t))

	state, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Frozen)
}

// TestBreakerStoreRoundTrip 状态写入后完整读回
func TestBreakerStoreRoundTrip(t *testing.T) {
	store := NewBreakerStore(newTestRedis(t))
	ctx := context.Background()

	in := &domain.BreakerState{
		Frozen:    true,
		Reason:    "cost runaway",
		Actor:     "oncall",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Set(ctx, in))

	out, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.Frozen, out.Frozen)
	assert.Equal(t, in.Reason, out.Reason)
	assert.Equal(t, in.Actor, out.Actor)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))

	in.Frozen = false
	in.Reason = "resolved"
	require.NoError(t, store.Set(ctx, in))

	out, err = store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, out.Frozen)
}
