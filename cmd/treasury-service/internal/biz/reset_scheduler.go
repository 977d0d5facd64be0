package biz

import (
	"context"
	"fmt"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// SchedulerConfig 周期任务配置
type SchedulerConfig struct {
	// RolloverSpec 日切巡检的cron表达式。每小时跑一次即可覆盖
	// 所有时区的日界；授权路径上的惰性日切才是正确性保证。
	RolloverSpec string
	// RescaleSpec 全量伸缩的cron表达式
	RescaleSpec string
	// RunTimeout 单轮任务的超时
	RunTimeout time.Duration
}

// DefaultSchedulerConfig 默认配置
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RolloverSpec: "0 * * * *",
		RescaleSpec:  "10 3 * * *",
		RunTimeout:   5 * time.Minute,
	}
}

// ResetScheduler 周期任务：为近期没有交易的代理主动执行日切
// （让看板上的当日消费保持新鲜），并按日触发全量性能伸缩。
type ResetScheduler struct {
	registry *BudgetRegistry
	scaler   *PerformanceScaler
	repo     domain.BudgetRepository
	cfg      SchedulerConfig
	cron     *cron.Cron
	log      *log.Helper
}

// NewResetScheduler 创建周期任务调度器
func NewResetScheduler(
	registry *BudgetRegistry,
	scaler *PerformanceScaler,
	repo domain.BudgetRepository,
	cfg SchedulerConfig,
	logger log.Logger,
) *ResetScheduler {
	if cfg.RolloverSpec == "" {
		cfg = DefaultSchedulerConfig()
	}
	return &ResetScheduler{
		registry: registry,
		scaler:   scaler,
		repo:     repo,
		cfg:      cfg,
		cron:     cron.New(),
		log:      log.NewHelper(log.With(logger, "module", "reset-scheduler")),
	}
}

// Start 注册并启动周期任务
func (s *ResetScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.RolloverSpec, s.runRollover); err != nil {
		return fmt.Errorf("register rollover job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.RescaleSpec, s.runRescale); err != nil {
		return fmt.Errorf("register rescale job: %w", err)
	}

	s.cron.Start()
	s.log.Infof("scheduler started: rollover=%q rescale=%q", s.cfg.RolloverSpec, s.cfg.RescaleSpec)
	return nil
}

// Stop 停止调度，等待在途任务结束
func (s *ResetScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *ResetScheduler) runRollover() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	ids, err := s.repo.ListActiveIDs(ctx)
	if err != nil {
		s.log.Errorf("rollover sweep: list agents failed: %v", err)
		return
	}

	var rolled int
	for _, id := range ids {
		ok, err := s.registry.RolloverIfDue(ctx, id)
		if err != nil {
			s.log.Errorf("rollover sweep: agent %s: %v", id, err)
			continue
		}
		if ok {
			rolled++
		}
	}
	if rolled > 0 {
		s.log.Infof("rollover sweep reset %d of %d agents", rolled, len(ids))
	}
}

func (s *ResetScheduler) runRescale() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	if err := s.scaler.RescaleAll(ctx); err != nil {
		s.log.Errorf("scheduled rescale: %v", err)
	}
}
