package domain

import (
	"errors"
	"fmt"
)

var (
	// Policy denials — expected business outcomes
	ErrEmergencyFreeze   = errors.New("treasury frozen by emergency circuit breaker")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Transient infrastructure errors
	ErrContentionExceeded = errors.New("budget contention retries exceeded")

	// Audit degradation — operational, never blocks a committed spend
	ErrAuditWriteDegraded = errors.New("audit write degraded")

	// Validation / lookup errors
	ErrAgentNotFound           = errors.New("agent budget not found")
	ErrInvalidAmount           = errors.New("amount must be a positive number of minor units")
	ErrBudgetExists            = errors.New("agent budget already exists")
	ErrInvalidStatus           = errors.New("invalid budget status")
	ErrBreakerStoreUnavailable = errors.New("breaker state store unavailable")
)

// UsageLimitExceededError 超出使用限额，Reason 区分单笔/当日/状态限制
type UsageLimitExceededError struct {
	Reason string
	Limit  int64
}

func (e *UsageLimitExceededError) Error() string {
	return fmt.Sprintf("usage limit exceeded: %s (limit=%d)", e.Reason, e.Limit)
}

// IsPolicyDenial 判断错误是否为业务层面的拒绝（而非基础设施故障）。
// 拒绝会被记为denied交易并直接返回调用方，不计入系统错误日志。
func IsPolicyDenial(err error) bool {
	var limitErr *UsageLimitExceededError
	return errors.Is(err, ErrEmergencyFreeze) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.As(err, &limitErr)
}
