package domain

import "time"

// TransactionOutcome 交易结果
type TransactionOutcome string

const (
	OutcomeSuccess TransactionOutcome = "success"
	OutcomeDenied  TransactionOutcome = "denied"
)

// 拒绝原因
const (
	DenialPerAction         = "per_action"
	DenialDaily             = "daily"
	DenialInsufficientFunds = "insufficient_funds"
	DenialEmergencyFreeze   = "emergency_freeze"
	DenialAgentInactive     = "agent_inactive"
)

// ROIData 单笔支出的投入产出元数据，由调用方在授权时附带
type ROIData struct {
	Tool          string `json:"tool"`
	ExpectedValue int64  `json:"expected_value"`
	RealizedValue int64  `json:"realized_value"`
}

// Transaction 不可变交易记录。每一次授权尝试——无论通过与否——
// 都恰好产生一条记录；写入后永不修改或删除。
type Transaction struct {
	ID           string
	AgentID      string
	// Amount 有符号最小货币单位，负数为扣款
	Amount       int64
	Description  string
	Outcome      TransactionOutcome
	DenialReason string
	ROI          *ROIData
	Metadata     map[string]string
	Timestamp    time.Time
}

// TimeRange 按时间窗口检索交易
type TimeRange struct {
	From time.Time
	To   time.Time
}
