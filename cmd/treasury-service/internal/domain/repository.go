package domain

import (
	"context"
	"time"
)

// BudgetCache 预算计数器的快速存储端口。余额正确性的权威来源；
// CompareAndSwap 以 AgentBudget.Version 为令牌，版本不匹配时
// 必须返回可识别的冲突错误，调用方凭此重试。
type BudgetCache interface {
	// GetBudget 读取预算（含版本号）。不存在返回 ErrAgentNotFound。
	GetBudget(ctx context.Context, agentID string) (*AgentBudget, error)

	// SeedBudget 无条件写入（创建或从持久层回填）
	SeedBudget(ctx context.Context, budget *AgentBudget) error

	// CompareAndSwap 仅当缓存中版本等于 budget.Version 时写入，
	// 成功后递增 budget.Version。
	CompareAndSwap(ctx context.Context, budget *AgentBudget) error

	// IsConflict 判断错误是否为版本冲突
	IsConflict(err error) bool
}

// BudgetRepository 预算的持久镜像。历史审计的权威来源，
// 不参与余额判定。
type BudgetRepository interface {
	Upsert(ctx context.Context, budget *AgentBudget) error
	Get(ctx context.Context, agentID string) (*AgentBudget, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// TransactionRepository 只追加的交易存储
type TransactionRepository interface {
	Append(ctx context.Context, tx *Transaction) error
	ListByAgent(ctx context.Context, agentID string, window TimeRange, limit int) ([]*Transaction, error)
}

// AdminAuditRepository 管理操作审计日志
type AdminAuditRepository interface {
	Append(ctx context.Context, event *AuditEvent) error
	List(ctx context.Context, window TimeRange, limit int) ([]*AuditEvent, error)
}

// BreakerStore 熔断标志的共享存储。读取必须强一致：
// 这是每次授权的第一个检查。
type BreakerStore interface {
	Get(ctx context.Context) (*BreakerState, error)
	Set(ctx context.Context, state *BreakerState) error
}

// RecentActivityIndex 缓存侧的近期活动索引，仅服务于读路径
type RecentActivityIndex interface {
	Push(ctx context.Context, tx *Transaction, ttl time.Duration) error
	Recent(ctx context.Context, agentID string, n int) ([]*Transaction, error)
}
