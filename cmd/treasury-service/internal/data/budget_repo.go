package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgentBudgetDO 代理预算数据对象（持久镜像）
type AgentBudgetDO struct {
	AgentID        string `gorm:"primaryKey;size:100"`
	CurrentBalance int64
	DailyLimit     int64
	PerActionLimit int64
	SpentToday     int64
	LastResetDate  string `gorm:"size:10"`
	Timezone       string `gorm:"size:50"`
	Status         string `gorm:"index;size:20"`
	Version        int64
	CreatedAt      int64
	UpdatedAt      int64 `gorm:"index"`
}

// TableName 指定表名
func (AgentBudgetDO) TableName() string {
	return "agent_budgets"
}

// budgetRepo 预算持久镜像仓储
type budgetRepo struct {
	db *gorm.DB
}

// NewBudgetRepository 创建预算仓储
func NewBudgetRepository(db *gorm.DB) domain.BudgetRepository {
	return &budgetRepo{db: db}
}

// Upsert 写入快照。镜像写入是靠后台重试收敛的，只接受比现有
// 版本更新的快照，避免乱序回放覆盖新状态。
func (r *budgetRepo) Upsert(ctx context.Context, budget *domain.AgentBudget) error {
	do := toBudgetDO(budget)

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"current_balance":  do.CurrentBalance,
			"daily_limit":      do.DailyLimit,
			"per_action_limit": do.PerActionLimit,
			"spent_today":      do.SpentToday,
			"last_reset_date":  do.LastResetDate,
			"timezone":         do.Timezone,
			"status":           do.Status,
			"version":          do.Version,
			"updated_at":       do.UpdatedAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: "agent_budgets", Name: "version"}, Value: do.Version},
		}},
	}).Create(do).Error
	if err != nil {
		return fmt.Errorf("upsert agent budget: %w", err)
	}
	return nil
}

// Get 点查预算镜像
func (r *budgetRepo) Get(ctx context.Context, agentID string) (*domain.AgentBudget, error) {
	var do AgentBudgetDO
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&do).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBudgetDO(&do), nil
}

// ListActiveIDs 列出在役代理
func (r *budgetRepo) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&AgentBudgetDO{}).
		Where("status = ?", string(domain.StatusActive)).
		Pluck("agent_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func toBudgetDO(b *domain.AgentBudget) *AgentBudgetDO {
	return &AgentBudgetDO{
		AgentID:        b.AgentID,
		CurrentBalance: b.CurrentBalance,
		DailyLimit:     b.DailyLimit,
		PerActionLimit: b.PerActionLimit,
		SpentToday:     b.SpentToday,
		LastResetDate:  b.LastResetDate,
		Timezone:       b.Timezone,
		Status:         string(b.Status),
		Version:        b.Version,
		CreatedAt:      b.CreatedAt.UnixMilli(),
		UpdatedAt:      b.UpdatedAt.UnixMilli(),
	}
}

func fromBudgetDO(do *AgentBudgetDO) *domain.AgentBudget {
	return &domain.AgentBudget{
		AgentID:        do.AgentID,
		CurrentBalance: do.CurrentBalance,
		DailyLimit:     do.DailyLimit,
		PerActionLimit: do.PerActionLimit,
		SpentToday:     do.SpentToday,
		LastResetDate:  do.LastResetDate,
		Timezone:       do.Timezone,
		Status:         domain.BudgetStatus(do.Status),
		Version:        do.Version,
		CreatedAt:      time.UnixMilli(do.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(do.UpdatedAt).UTC(),
	}
}
