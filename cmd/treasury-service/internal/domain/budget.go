package domain

import "time"

// BudgetStatus 预算状态
type BudgetStatus string

const (
	// StatusActive 正常，可以消费
	StatusActive BudgetStatus = "active"
	// StatusSuspended 暂停，拒绝消费但保留额度
	StatusSuspended BudgetStatus = "suspended"
	// StatusDecommissioned 退役，永不再消费；记录不物理删除
	StatusDecommissioned BudgetStatus = "decommissioned"
)

// DateLayout 日切日期格式（代理本地时区）
const DateLayout = "2006-01-02"

// AgentBudget 代理预算。金额一律为整数最小货币单位（分），
// 避免浮点累计误差。
//
// 字段所有权：CurrentBalance/SpentToday/LastResetDate 仅由预算注册表
// 变更，DailyLimit/PerActionLimit 仅由性能伸缩器变更。
type AgentBudget struct {
	AgentID        string
	CurrentBalance int64
	DailyLimit     int64
	PerActionLimit int64
	SpentToday     int64
	LastResetDate  string
	Timezone       string
	Status         BudgetStatus
	// Version CAS乐观锁令牌，由缓存适配器维护
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location 返回代理本地时区，未设置或非法时退回UTC
func (b *AgentBudget) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDate 当前时刻在代理本地时区的日期
func (b *AgentBudget) LocalDate(now time.Time) string {
	return now.In(b.Location()).Format(DateLayout)
}

// NeedsRollover 判断是否跨过了代理本地日界
func (b *AgentBudget) NeedsRollover(now time.Time) bool {
	return b.LastResetDate != b.LocalDate(now)
}

// Rollover 执行日切：清零当日消费并推进日期。
// 必须在评估日限额之前调用。
func (b *AgentBudget) Rollover(now time.Time) {
	b.SpentToday = 0
	b.LastResetDate = b.LocalDate(now)
}

// Clone 返回可独立变更的副本
func (b *AgentBudget) Clone() *AgentBudget {
	c := *b
	return &c
}
