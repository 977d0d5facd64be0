package biz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"treasury/cmd/treasury-service/internal/domain"
	"treasury/pkg/monitoring"
	"treasury/pkg/resilience"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// RegistryConfig 预算注册表配置
type RegistryConfig struct {
	// CAS重试参数
	CASMaxRetries   int
	CASInitialDelay time.Duration
	CASMaxDelay     time.Duration

	// 开户默认值（最小货币单位）
	DefaultBalance        int64
	DefaultDailyLimit     int64
	DefaultPerActionLimit int64

	// 持久镜像的后台重试参数
	MirrorMaxRetries   int
	MirrorInitialDelay time.Duration
	MirrorMaxDelay     time.Duration
}

// DefaultRegistryConfig 默认配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		CASMaxRetries:         8,
		CASInitialDelay:       5 * time.Millisecond,
		CASMaxDelay:           100 * time.Millisecond,
		DefaultBalance:        10000,
		DefaultDailyLimit:     5000,
		DefaultPerActionLimit: 2000,
		MirrorMaxRetries:      5,
		MirrorInitialDelay:    100 * time.Millisecond,
		MirrorMaxDelay:        5 * time.Second,
	}
}

// BudgetRegistry 预算注册表。独占 CurrentBalance/SpentToday/LastResetDate
// 的变更权；所有变更走缓存存储上的单一CAS原语，保证同一代理的并发
// 授权不丢更新、不双花。不同代理之间互不竞争。
type BudgetRegistry struct {
	cache   domain.BudgetCache
	repo    domain.BudgetRepository
	ledger  *TransactionLedger
	breaker *EmergencyBreaker
	audit   domain.AdminAuditRepository
	cfg     RegistryConfig
	log     *log.Helper
}

// NewBudgetRegistry 创建预算注册表
func NewBudgetRegistry(
	cache domain.BudgetCache,
	repo domain.BudgetRepository,
	ledger *TransactionLedger,
	breaker *EmergencyBreaker,
	audit domain.AdminAuditRepository,
	cfg RegistryConfig,
	logger log.Logger,
) *BudgetRegistry {
	if cfg.CASMaxRetries <= 0 {
		cfg = DefaultRegistryConfig()
	}
	return &BudgetRegistry{
		cache:   cache,
		repo:    repo,
		ledger:  ledger,
		breaker: breaker,
		audit:   audit,
		cfg:     cfg,
		log:     log.NewHelper(log.With(logger, "module", "budget-registry")),
	}
}

// Authorize 授权一笔支出。检查顺序：熔断、单笔限额、惰性日切、
// 日限额、余额；全部通过后以CAS原子扣减。无论通过与否都恰好
// 产生一条交易记录。调用方看不到中间状态：要么扣减完整生效并
// 有success记录，要么余额不变并有denied记录。
//
// metadata 中的 tool/expected_value/realized_value 键会被解析为
// ROI元数据随交易记录保存。
func (r *BudgetRegistry) Authorize(ctx context.Context, agentID string, amount int64, description string, metadata map[string]string) (string, error) {
	start := time.Now()
	defer func() {
		monitoring.AuthorizeDuration.Observe(time.Since(start).Seconds())
	}()

	if agentID == "" {
		return "", domain.ErrAgentNotFound
	}
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}

	// 熔断检查最先执行，未冻结时开销最小
	frozen, err := r.breaker.IsFrozen(ctx)
	if err != nil {
		return "", err
	}
	if frozen {
		txID := r.recordDenied(ctx, agentID, amount, description, metadata, domain.DenialEmergencyFreeze)
		monitoring.AuthorizationsTotal.WithLabelValues("denied", domain.DenialEmergencyFreeze).Inc()
		return txID, domain.ErrEmergencyFreeze
	}

	var (
		updated *domain.AgentBudget
		denial  error
		reason  string
	)

	casErr := resilience.Retry(ctx, r.casPolicy(), func() error {
		budget, err := r.loadBudget(ctx, agentID)
		if err != nil {
			return err
		}

		b := budget.Clone()
		now := time.Now()
		denial, reason = nil, ""

		// 检查顺序决定拒绝原因的优先级
		if b.Status != domain.StatusActive {
			denial = &domain.UsageLimitExceededError{Reason: domain.DenialAgentInactive}
			reason = domain.DenialAgentInactive
		} else if amount > b.PerActionLimit {
			denial = &domain.UsageLimitExceededError{Reason: domain.DenialPerAction, Limit: b.PerActionLimit}
			reason = domain.DenialPerAction
		}

		// 惰性日切先于日限额评估
		rolled := false
		if b.NeedsRollover(now) {
			b.Rollover(now)
			rolled = true
		}

		if denial == nil && b.SpentToday+amount > b.DailyLimit {
			denial = &domain.UsageLimitExceededError{Reason: domain.DenialDaily, Limit: b.DailyLimit}
			reason = domain.DenialDaily
		}
		if denial == nil && b.CurrentBalance < amount {
			denial = domain.ErrInsufficientFunds
			reason = domain.DenialInsufficientFunds
		}

		if denial != nil {
			// 拒绝不动余额；但已跨日界时日切本身要落盘
			if rolled {
				b.UpdatedAt = now.UTC()
				if err := r.cache.CompareAndSwap(ctx, b); err != nil {
					return err
				}
				r.mirrorAsync(b)
			}
			return nil
		}

		b.CurrentBalance -= amount
		b.SpentToday += amount
		b.UpdatedAt = now.UTC()

		if err := r.cache.CompareAndSwap(ctx, b); err != nil {
			if r.cache.IsConflict(err) {
				monitoring.CASConflictsTotal.Inc()
			}
			return err
		}

		updated = b
		return nil
	})

	if casErr != nil {
		if errors.Is(casErr, resilience.ErrMaxRetriesExceeded) {
			txID := r.recordDenied(ctx, agentID, amount, description, metadata, "contention")
			monitoring.AuthorizationsTotal.WithLabelValues("denied", "contention").Inc()
			return txID, domain.ErrContentionExceeded
		}
		return "", casErr
	}

	if denial != nil {
		txID := r.recordDenied(ctx, agentID, amount, description, metadata, reason)
		monitoring.AuthorizationsTotal.WithLabelValues("denied", reason).Inc()
		return txID, denial
	}

	// 扣减已提交，调用方断开也必须完成记账
	detached := context.WithoutCancel(ctx)

	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Amount:      -amount,
		Description: description,
		Outcome:     domain.OutcomeSuccess,
		ROI:         roiFromMetadata(metadata),
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	}
	if err := r.ledger.Record(detached, tx); err != nil {
		r.log.WithContext(ctx).Errorf("ledger record failed for %s: %v", tx.ID, err)
	}

	r.mirrorAsync(updated)

	monitoring.AuthorizationsTotal.WithLabelValues("success", "").Inc()
	monitoring.SpendTotal.WithLabelValues(agentID).Add(float64(amount))

	if r.ledger.Degraded() {
		// 消费已生效；降级是合规风险信号而非失败
		return tx.ID, domain.ErrAuditWriteDegraded
	}
	return tx.ID, nil
}

// Deposit 充值。与扣款走同一CAS纪律，记一条正金额的success交易。
func (r *BudgetRegistry) Deposit(ctx context.Context, agentID string, amount int64, description string) (string, error) {
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}

	var updated *domain.AgentBudget
	casErr := resilience.Retry(ctx, r.casPolicy(), func() error {
		budget, err := r.loadBudget(ctx, agentID)
		if err != nil {
			return err
		}

		b := budget.Clone()
		b.CurrentBalance += amount
		b.UpdatedAt = time.Now().UTC()

		if err := r.cache.CompareAndSwap(ctx, b); err != nil {
			if r.cache.IsConflict(err) {
				monitoring.CASConflictsTotal.Inc()
			}
			return err
		}
		updated = b
		return nil
	})
	if casErr != nil {
		if errors.Is(casErr, resilience.ErrMaxRetriesExceeded) {
			return "", domain.ErrContentionExceeded
		}
		return "", casErr
	}

	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Amount:      amount,
		Description: description,
		Outcome:     domain.OutcomeSuccess,
		Timestamp:   time.Now().UTC(),
	}
	if err := r.ledger.Record(context.WithoutCancel(ctx), tx); err != nil {
		r.log.WithContext(ctx).Errorf("ledger record failed for deposit %s: %v", tx.ID, err)
	}
	r.mirrorAsync(updated)

	return tx.ID, nil
}

// CreateBudget 开户。两个存储都写入后才算成功。
func (r *BudgetRegistry) CreateBudget(ctx context.Context, budget *domain.AgentBudget) error {
	if budget == nil || budget.AgentID == "" {
		return domain.ErrAgentNotFound
	}
	if _, err := r.cache.GetBudget(ctx, budget.AgentID); err == nil {
		return domain.ErrBudgetExists
	}

	now := time.Now().UTC()
	if budget.CurrentBalance == 0 {
		budget.CurrentBalance = r.cfg.DefaultBalance
	}
	if budget.DailyLimit == 0 {
		budget.DailyLimit = r.cfg.DefaultDailyLimit
	}
	if budget.PerActionLimit == 0 {
		budget.PerActionLimit = r.cfg.DefaultPerActionLimit
	}
	if budget.Timezone == "" {
		budget.Timezone = "UTC"
	}
	budget.Status = domain.StatusActive
	budget.LastResetDate = budget.LocalDate(now)
	budget.CreatedAt = now
	budget.UpdatedAt = now

	if err := r.repo.Upsert(ctx, budget); err != nil {
		return fmt.Errorf("persist budget: %w", err)
	}
	if err := r.cache.SeedBudget(ctx, budget); err != nil {
		return fmt.Errorf("seed budget cache: %w", err)
	}

	r.auditEvent(ctx, domain.AuditActionBudgetCreate, budget.AgentID, "system", "provisioned",
		fmt.Sprintf("balance=%d daily=%d per_action=%d", budget.CurrentBalance, budget.DailyLimit, budget.PerActionLimit))

	r.log.WithContext(ctx).Infof("budget created for agent %s", budget.AgentID)
	return nil
}

// SetStatus 启停代理。预算从不物理删除，退役仅改状态。
func (r *BudgetRegistry) SetStatus(ctx context.Context, agentID string, status domain.BudgetStatus, actor, reason string) error {
	switch status {
	case domain.StatusActive, domain.StatusSuspended, domain.StatusDecommissioned:
	default:
		return domain.ErrInvalidStatus
	}

	casErr := resilience.Retry(ctx, r.casPolicy(), func() error {
		budget, err := r.loadBudget(ctx, agentID)
		if err != nil {
			return err
		}
		b := budget.Clone()
		b.Status = status
		b.UpdatedAt = time.Now().UTC()
		if err := r.cache.CompareAndSwap(ctx, b); err != nil {
			return err
		}
		r.mirrorAsync(b)
		return nil
	})
	if casErr != nil {
		if errors.Is(casErr, resilience.ErrMaxRetriesExceeded) {
			return domain.ErrContentionExceeded
		}
		return casErr
	}

	r.auditEvent(ctx, domain.AuditActionBudgetStatus, agentID, actor, reason, string(status))
	return nil
}

// GetBudget 读取预算（缓存优先，镜像兜底）
func (r *BudgetRegistry) GetBudget(ctx context.Context, agentID string) (*domain.AgentBudget, error) {
	return r.loadBudget(ctx, agentID)
}

// RolloverIfDue 跨过代理本地日界时执行日切。授权路径上的惰性日切
// 才是正确性保证，这里只是让空闲代理的计数器保持新鲜。
func (r *BudgetRegistry) RolloverIfDue(ctx context.Context, agentID string) (bool, error) {
	rolled := false
	casErr := resilience.Retry(ctx, r.casPolicy(), func() error {
		budget, err := r.loadBudget(ctx, agentID)
		if err != nil {
			return err
		}
		now := time.Now()
		if !budget.NeedsRollover(now) {
			rolled = false
			return nil
		}
		b := budget.Clone()
		b.Rollover(now)
		b.UpdatedAt = now.UTC()
		if err := r.cache.CompareAndSwap(ctx, b); err != nil {
			return err
		}
		r.mirrorAsync(b)
		rolled = true
		return nil
	})
	if casErr != nil {
		if errors.Is(casErr, resilience.ErrMaxRetriesExceeded) {
			return false, domain.ErrContentionExceeded
		}
		return false, casErr
	}
	return rolled, nil
}

// ApplyLimits 性能伸缩器写入新限额的唯一入口。注册表不改限额，
// 只代为执行CAS，保证与在途授权串行化。
func (r *BudgetRegistry) ApplyLimits(ctx context.Context, agentID string, dailyLimit, perActionLimit int64) error {
	casErr := resilience.Retry(ctx, r.casPolicy(), func() error {
		budget, err := r.loadBudget(ctx, agentID)
		if err != nil {
			return err
		}
		b := budget.Clone()
		b.DailyLimit = dailyLimit
		b.PerActionLimit = perActionLimit
		b.UpdatedAt = time.Now().UTC()
		if err := r.cache.CompareAndSwap(ctx, b); err != nil {
			return err
		}
		r.mirrorAsync(b)
		return nil
	})
	if casErr != nil {
		if errors.Is(casErr, resilience.ErrMaxRetriesExceeded) {
			return domain.ErrContentionExceeded
		}
		return casErr
	}
	return nil
}

func (r *BudgetRegistry) casPolicy() resilience.RetryPolicy {
	policy := resilience.CASRetryPolicy(r.cache.IsConflict)
	policy.MaxRetries = r.cfg.CASMaxRetries
	policy.InitialDelay = r.cfg.CASInitialDelay
	policy.MaxDelay = r.cfg.CASMaxDelay
	return policy
}

// loadBudget 缓存优先；缓存未命中时从持久镜像回填
func (r *BudgetRegistry) loadBudget(ctx context.Context, agentID string) (*domain.AgentBudget, error) {
	budget, err := r.cache.GetBudget(ctx, agentID)
	if err == nil {
		return budget, nil
	}
	if !errors.Is(err, domain.ErrAgentNotFound) {
		return nil, err
	}

	budget, err = r.repo.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SeedBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("backfill budget cache: %w", err)
	}
	return budget, nil
}

// recordDenied 拒绝也要留痕：每次授权尝试恰好一条交易
func (r *BudgetRegistry) recordDenied(ctx context.Context, agentID string, amount int64, description string, metadata map[string]string, reason string) string {
	tx := &domain.Transaction{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		Amount:       -amount,
		Description:  description,
		Outcome:      domain.OutcomeDenied,
		DenialReason: reason,
		Metadata:     metadata,
		Timestamp:    time.Now().UTC(),
	}
	if err := r.ledger.Record(context.WithoutCancel(ctx), tx); err != nil {
		r.log.WithContext(ctx).Errorf("ledger record failed for denial %s: %v", tx.ID, err)
	}
	return tx.ID
}

// mirrorAsync 把最新快照镜像到持久存储。对调用方是fire-and-forget，
// 后台带退避重试；缓存才是余额正确性的权威，镜像只服务历史审计。
func (r *BudgetRegistry) mirrorAsync(budget *domain.AgentBudget) {
	snapshot := budget.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := resilience.RetryWithBackoff(ctx, r.cfg.MirrorMaxRetries, r.cfg.MirrorInitialDelay, r.cfg.MirrorMaxDelay, func() error {
			return r.repo.Upsert(ctx, snapshot)
		})
		if err != nil {
			r.log.Errorf("budget mirror failed for agent %s: %v", snapshot.AgentID, err)
		}
	}()
}

func (r *BudgetRegistry) auditEvent(ctx context.Context, action domain.AuditAction, agentID, actor, reason, details string) {
	event := &domain.AuditEvent{
		ID:        uuid.NewString(),
		Action:    action,
		AgentID:   agentID,
		Actor:     actor,
		Reason:    reason,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.audit.Append(ctx, event); err != nil {
		r.log.WithContext(ctx).Errorf("admin audit append failed: %v", err)
	}
}

// roiFromMetadata 从授权元数据解析ROI字段
func roiFromMetadata(metadata map[string]string) *domain.ROIData {
	if metadata == nil {
		return nil
	}
	tool, hasTool := metadata["tool"]
	expected, hasExpected := metadata["expected_value"]
	realized, hasRealized := metadata["realized_value"]
	if !hasTool && !hasExpected && !hasRealized {
		return nil
	}

	roi := &domain.ROIData{Tool: tool}
	if hasExpected {
		roi.ExpectedValue, _ = strconv.ParseInt(expected, 10, 64)
	}
	if hasRealized {
		roi.RealizedValue, _ = strconv.ParseInt(realized, 10, 64)
	}
	return roi
}
