package biz

import (
	"context"
	"fmt"
	"time"

	"treasury/cmd/treasury-service/internal/domain"
	"treasury/pkg/monitoring"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PerformanceTier ROI档位
type PerformanceTier string

const (
	TierExcellent PerformanceTier = "excellent"
	TierGood      PerformanceTier = "good"
	TierNeutral   PerformanceTier = "neutral"
	TierPoor      PerformanceTier = "poor"
	TierCritical  PerformanceTier = "critical"
)

// ScalerConfig 性能伸缩器配置
type ScalerConfig struct {
	// Window ROI的滚动统计窗口。源系统未指定窗口长度，
	// 固定为30天（与交易缓存保留期一致），最多取MaxTransactions条。
	Window          time.Duration
	MaxTransactions int

	// 限额的绝对下限/上限，防止缩放到零或无界增长
	FloorDailyLimit       int64
	CeilingDailyLimit     int64
	FloorPerActionLimit   int64
	CeilingPerActionLimit int64
}

// DefaultScalerConfig 默认配置
func DefaultScalerConfig() ScalerConfig {
	return ScalerConfig{
		Window:                30 * 24 * time.Hour,
		MaxTransactions:       500,
		FloorDailyLimit:       500,
		CeilingDailyLimit:     1000000,
		FloorPerActionLimit:   100,
		CeilingPerActionLimit: 200000,
	}
}

// NewLimits 一次伸缩的结果
type NewLimits struct {
	AgentID        string          `json:"agent_id"`
	ROI            float64         `json:"roi"`
	Tier           PerformanceTier `json:"tier"`
	DailyLimit     int64           `json:"daily_limit"`
	PerActionLimit int64           `json:"per_action_limit"`
	Changed        bool            `json:"changed"`
}

// PerformanceScaler 按实际投入产出调整代理的消费上限。
// 独占 DailyLimit/PerActionLimit 的变更权；写入通过注册表的CAS
// 原语执行，与在途授权天然串行。从不直接动 CurrentBalance。
type PerformanceScaler struct {
	registry *BudgetRegistry
	ledger   *TransactionLedger
	repo     domain.BudgetRepository
	audit    domain.AdminAuditRepository
	cfg      ScalerConfig
	log      *log.Helper
}

// NewPerformanceScaler 创建性能伸缩器
func NewPerformanceScaler(
	registry *BudgetRegistry,
	ledger *TransactionLedger,
	repo domain.BudgetRepository,
	audit domain.AdminAuditRepository,
	cfg ScalerConfig,
	logger log.Logger,
) *PerformanceScaler {
	if cfg.Window <= 0 {
		cfg = DefaultScalerConfig()
	}
	return &PerformanceScaler{
		registry: registry,
		ledger:   ledger,
		repo:     repo,
		audit:    audit,
		cfg:      cfg,
		log:      log.NewHelper(log.With(logger, "module", "performance-scaler")),
	}
}

// Rescale 重新计算ROI并按档位调整限额
func (s *PerformanceScaler) Rescale(ctx context.Context, agentID string) (*NewLimits, error) {
	budget, err := s.registry.GetBudget(ctx, agentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	window := domain.TimeRange{From: now.Add(-s.cfg.Window), To: now}
	txs, err := s.ledger.GetTransactions(ctx, agentID, window, s.cfg.MaxTransactions)
	if err != nil {
		return nil, fmt.Errorf("load transaction window: %w", err)
	}

	roi, spent := computeROI(txs)
	tier, multiplier := tierFor(roi, spent)

	result := &NewLimits{
		AgentID:        agentID,
		ROI:            roi,
		Tier:           tier,
		DailyLimit:     budget.DailyLimit,
		PerActionLimit: budget.PerActionLimit,
	}

	newDaily := clamp(scale(budget.DailyLimit, multiplier), s.cfg.FloorDailyLimit, s.cfg.CeilingDailyLimit)
	newPerAction := clamp(scale(budget.PerActionLimit, multiplier), s.cfg.FloorPerActionLimit, s.cfg.CeilingPerActionLimit)

	if newDaily == budget.DailyLimit && newPerAction == budget.PerActionLimit {
		monitoring.RescalesTotal.WithLabelValues(string(tier)).Inc()
		return result, nil
	}

	if err := s.registry.ApplyLimits(ctx, agentID, newDaily, newPerAction); err != nil {
		return nil, err
	}

	result.DailyLimit = newDaily
	result.PerActionLimit = newPerAction
	result.Changed = true

	monitoring.RescalesTotal.WithLabelValues(string(tier)).Inc()
	s.log.WithContext(ctx).Infof("rescaled agent %s: roi=%.2f tier=%s daily=%d per_action=%d",
		agentID, roi, tier, newDaily, newPerAction)

	event := &domain.AuditEvent{
		ID:        uuid.NewString(),
		Action:    domain.AuditActionRescale,
		AgentID:   agentID,
		Actor:     "performance-scaler",
		Reason:    string(tier),
		Details:   fmt.Sprintf("roi=%.4f daily=%d->%d per_action=%d->%d", roi, budget.DailyLimit, newDaily, budget.PerActionLimit, newPerAction),
		CreatedAt: now,
	}
	if err := s.audit.Append(ctx, event); err != nil {
		s.log.WithContext(ctx).Errorf("rescale audit append failed: %v", err)
	}

	return result, nil
}

// RescaleAll 对所有在役代理执行伸缩，周期任务入口
func (s *PerformanceScaler) RescaleAll(ctx context.Context) error {
	ids, err := s.repo.ListActiveIDs(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		if _, err := s.Rescale(ctx, id); err != nil {
			failed++
			s.log.WithContext(ctx).Errorf("rescale failed for agent %s: %v", id, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("rescale failed for %d of %d agents", failed, len(ids))
	}
	return nil
}

// computeROI 在窗口内统计：产出为成功扣款交易ROI元数据中的实际价值，
// 投入为成功扣款的金额合计。返回ROI和投入合计。
func computeROI(txs []*domain.Transaction) (float64, int64) {
	var spent, value int64
	for _, tx := range txs {
		if tx.Outcome != domain.OutcomeSuccess || tx.Amount >= 0 {
			continue
		}
		spent += -tx.Amount
		if tx.ROI != nil {
			value += tx.ROI.RealizedValue
		}
	}
	if spent == 0 {
		return 0, 0
	}
	return float64(value) / float64(spent), spent
}

// tierFor 档位判定，下界含等号：ROI恰为2.0记excellent，恰为0.8记neutral。
// 窗口内没有消费时不做调整。
func tierFor(roi float64, spent int64) (PerformanceTier, float64) {
	if spent == 0 {
		return TierNeutral, 1.0
	}
	switch {
	case roi >= 2.0:
		return TierExcellent, 1.5
	case roi >= 1.5:
		return TierGood, 1.2
	case roi >= 0.8:
		return TierNeutral, 1.0
	case roi >= 0.4:
		return TierPoor, 0.8
	default:
		return TierCritical, 0.5
	}
}

// scale 整数最小货币单位上做乘法，向零截断
func scale(limit int64, multiplier float64) int64 {
	return int64(float64(limit) * multiplier)
}

func clamp(v, floor, ceiling int64) int64 {
	if v < floor {
		return floor
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
