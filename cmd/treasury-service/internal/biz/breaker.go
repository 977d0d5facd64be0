package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"treasury/cmd/treasury-service/internal/domain"
	"treasury/pkg/monitoring"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// breakerCacheTTL 本地缓存仅在状态存储读取失败时兜底，
// 窗口必须足够短：熔断是紧急制动，不能读到陈旧状态。
const breakerCacheTTL = 2 * time.Second

// EmergencyBreaker 全局紧急熔断器。状态存放在共享存储中，
// 多个进程实例看到同一份标志；每次冻结/解冻都写入管理审计日志。
// 冻结不回滚已提交的消费，只阻止新的授权。
type EmergencyBreaker struct {
	store domain.BreakerStore
	audit domain.AdminAuditRepository
	log   *log.Helper

	mu       sync.RWMutex
	cached   *domain.BreakerState
	cachedAt time.Time
}

// NewEmergencyBreaker 创建紧急熔断器
func NewEmergencyBreaker(store domain.BreakerStore, audit domain.AdminAuditRepository, logger log.Logger) *EmergencyBreaker {
	return &EmergencyBreaker{
		store: store,
		audit: audit,
		log:   log.NewHelper(log.With(logger, "module", "emergency-breaker")),
	}
}

// IsFrozen 读取冻结标志。每次授权的第一个检查，必须强一致：
// 总是直读存储，仅当存储不可达时才在2秒窗口内使用本地缓存。
func (b *EmergencyBreaker) IsFrozen(ctx context.Context) (bool, error) {
	state, err := b.store.Get(ctx)
	if err != nil {
		b.mu.RLock()
		cached, cachedAt := b.cached, b.cachedAt
		b.mu.RUnlock()
		if cached != nil && time.Since(cachedAt) <= breakerCacheTTL {
			return cached.Frozen, nil
		}
		return false, fmt.Errorf("%w: %v", domain.ErrBreakerStoreUnavailable, err)
	}

	b.remember(state)
	return state.Frozen, nil
}

// State 返回完整熔断状态
func (b *EmergencyBreaker) State(ctx context.Context) (*domain.BreakerState, error) {
	state, err := b.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBreakerStoreUnavailable, err)
	}
	b.remember(state)
	return state, nil
}

// Freeze 冻结全部消费授权。存储写入失败时不生效并返回错误。
func (b *EmergencyBreaker) Freeze(ctx context.Context, reason, actor string) error {
	return b.transition(ctx, true, reason, actor)
}

// Unfreeze 解除冻结
func (b *EmergencyBreaker) Unfreeze(ctx context.Context, reason, actor string) error {
	return b.transition(ctx, false, reason, actor)
}

func (b *EmergencyBreaker) transition(ctx context.Context, frozen bool, reason, actor string) error {
	state := &domain.BreakerState{
		Frozen:    frozen,
		Reason:    reason,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}

	if err := b.store.Set(ctx, state); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBreakerStoreUnavailable, err)
	}
	b.remember(state)

	action := domain.AuditActionFreeze
	gauge := 1.0
	if !frozen {
		action = domain.AuditActionUnfreeze
		gauge = 0.0
	}
	monitoring.BreakerFrozen.Set(gauge)

	b.log.WithContext(ctx).Warnf("breaker %s by %s: %s", action, actor, reason)

	event := &domain.AuditEvent{
		ID:        uuid.NewString(),
		Action:    action,
		Actor:     actor,
		Reason:    reason,
		CreatedAt: state.Timestamp,
	}
	if err := b.audit.Append(ctx, event); err != nil {
		// 标志已经生效；审计缺口必须让操作者知道
		b.log.WithContext(ctx).Errorf("failed to audit breaker transition: %v", err)
		return fmt.Errorf("breaker %s applied but audit write failed: %w", action, err)
	}

	return nil
}

func (b *EmergencyBreaker) remember(state *domain.BreakerState) {
	b.mu.Lock()
	b.cached = state
	b.cachedAt = time.Now()
	b.mu.Unlock()
}
