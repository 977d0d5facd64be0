package biz

import (
	"context"
	"testing"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBreakerFreezeUnfreeze 冻结/解冻写入共享存储并留审计痕
func TestBreakerFreezeUnfreeze(t *testing.T) {
	store := newMemBreakerStore()
	audit := newMemAuditRepo()
	breaker := NewEmergencyBreaker(store, audit, testLogger())
	ctx := context.Background()

	frozen, err := breaker.IsFrozen(ctx)
	require.NoError(t, err)
	assert.False(t, frozen)

	require.NoError(t, breaker.Freeze(ctx, "cost runaway", "oncall"))

	frozen, err = breaker.IsFrozen(ctx)
	require.NoError(t, err)
	assert.True(t, frozen)

	state, err := breaker.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Frozen)
	assert.Equal(t, "cost runaway", state.Reason)
	assert.Equal(t, "oncall", state.Actor)
	assert.False(t, state.Timestamp.IsZero())

	require.NoError(t, breaker.Unfreeze(ctx, "resolved", "oncall"))
	frozen, err = breaker.IsFrozen(ctx)
	require.NoError(t, err)
	assert.False(t, frozen)

	assert.Len(t, audit.byAction(domain.AuditActionFreeze), 1)
	assert.Len(t, audit.byAction(domain.AuditActionUnfreeze), 1)
}

// TestBreakerFallbackCache 存储不可达时短窗口内使用最近一次读到的状态
func TestBreakerFallbackCache(t *testing.T) {
	store := newMemBreakerStore()
	audit := newMemAuditRepo()
	breaker := NewEmergencyBreaker(store, audit, testLogger())
	ctx := context.Background()

	require.NoError(t, breaker.Freeze(ctx, "incident", "oncall"))

	store.setFail(true)

	frozen, err := breaker.IsFrozen(ctx)
	require.NoError(t, err, "recent cached state bridges a store outage")
	assert.True(t, frozen)
}

// TestBreakerStoreUnavailable 没有新鲜缓存时存储故障必须上抛
func TestBreakerStoreUnavailable(t *testing.T) {
	store := newMemBreakerStore()
	store.setFail(true)
	breaker := NewEmergencyBreaker(store, newMemAuditRepo(), testLogger())

	_, err := breaker.IsFrozen(context.Background())
	assert.ErrorIs(t, err, domain.ErrBreakerStoreUnavailable)

	err = breaker.Freeze(context.Background(), "incident", "oncall")
	assert.ErrorIs(t, err, domain.ErrBreakerStoreUnavailable)
}

// TestBreakerAuditFailureSurfaces 标志已生效但审计写失败时要告知操作者
func TestBreakerAuditFailureSurfaces(t *testing.T) {
	store := newMemBreakerStore()
	audit := newMemAuditRepo()
	audit.fail = true
	breaker := NewEmergencyBreaker(store, audit, testLogger())
	ctx := context.Background()

	err := breaker.Freeze(ctx, "incident", "oncall")
	require.Error(t, err)

	// 即便审计失败，冻结本身必须生效
	frozen, isErr := breaker.IsFrozen(ctx)
	require.NoError(t, isErr)
	assert.True(t, frozen)
}
