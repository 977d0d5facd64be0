package data

import (
	"context"
	"fmt"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"gorm.io/gorm"
)

// AdminAuditDO 管理审计日志数据对象
type AdminAuditDO struct {
	ID        string `gorm:"primaryKey;size:100"`
	Action    string `gorm:"index;size:50"`
	AgentID   string `gorm:"index;size:100"`
	Actor     string `gorm:"size:100"`
	Reason    string `gorm:"size:500"`
	Details   string `gorm:"type:text"`
	CreatedAt int64  `gorm:"index"`
}

// TableName 指定表名
func (AdminAuditDO) TableName() string {
	return "admin_audit_events"
}

// adminAuditRepo 管理审计仓储实现
type adminAuditRepo struct {
	db *gorm.DB
}

// NewAdminAuditRepository 创建管理审计仓储
func NewAdminAuditRepository(db *gorm.DB) domain.AdminAuditRepository {
	return &adminAuditRepo{db: db}
}

// Append 追加审计事件
func (r *adminAuditRepo) Append(ctx context.Context, event *domain.AuditEvent) error {
	do := &AdminAuditDO{
		ID:        event.ID,
		Action:    string(event.Action),
		AgentID:   event.AgentID,
		Actor:     event.Actor,
		Reason:    event.Reason,
		Details:   event.Details,
		CreatedAt: event.CreatedAt.UnixMilli(),
	}
	if err := r.db.WithContext(ctx).Create(do).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// List 按时间窗口检索审计事件
func (r *adminAuditRepo) List(ctx context.Context, window domain.TimeRange, limit int) ([]*domain.AuditEvent, error) {
	query := r.db.WithContext(ctx).Model(&AdminAuditDO{})

	if !window.From.IsZero() {
		query = query.Where("created_at >= ?", window.From.UnixMilli())
	}
	if !window.To.IsZero() {
		query = query.Where("created_at <= ?", window.To.UnixMilli())
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var dos []AdminAuditDO
	if err := query.Order("created_at DESC").Find(&dos).Error; err != nil {
		return nil, err
	}

	events := make([]*domain.AuditEvent, 0, len(dos))
	for i := range dos {
		do := &dos[i]
		events = append(events, &domain.AuditEvent{
			ID:        do.ID,
			Action:    domain.AuditAction(do.Action),
			AgentID:   do.AgentID,
			Actor:     do.Actor,
			Reason:    do.Reason,
			Details:   do.Details,
			CreatedAt: time.UnixMilli(do.CreatedAt).UTC(),
		})
	}
	return events, nil
}
