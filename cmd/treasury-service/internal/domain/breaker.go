package domain

import "time"

// BreakerState 全局熔断状态，进程间共享（存储于缓存存储）
type BreakerState struct {
	Frozen    bool      `json:"frozen"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditAction 管理审计动作类型
type AuditAction string

const (
	AuditActionFreeze       AuditAction = "breaker.freeze"
	AuditActionUnfreeze     AuditAction = "breaker.unfreeze"
	AuditActionRescale      AuditAction = "limits.rescale"
	AuditActionBudgetCreate AuditAction = "budget.create"
	AuditActionBudgetStatus AuditAction = "budget.status"
)

// AuditEvent 管理操作审计事件，与交易账本平行的管理日志
type AuditEvent struct {
	ID        string
	Action    AuditAction
	AgentID   string
	Actor     string
	Reason    string
	Details   string
	CreatedAt time.Time
}
