package errors

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeBadRequest      = 400
	CodePaymentRequired = 402
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeLocked          = 423
	CodeTooManyRequests = 429

	// Server errors (5xx)
	CodeInternalServerError = 500
	CodeServiceUnavailable  = 503
)

// Treasury boundary errors
var (
	ErrBadRequest          = errors.BadRequest("BAD_REQUEST", "Bad request")
	ErrAgentNotFound       = errors.NotFound("AGENT_NOT_FOUND", "Agent budget not found")
	ErrInsufficientFunds   = errors.New(CodePaymentRequired, "INSUFFICIENT_FUNDS", "Insufficient funds")
	ErrUsageLimitExceeded  = errors.New(CodeTooManyRequests, "USAGE_LIMIT_EXCEEDED", "Usage limit exceeded")
	ErrEmergencyFreeze     = errors.New(CodeLocked, "EMERGENCY_FREEZE", "Treasury is frozen")
	ErrContentionExceeded  = errors.ServiceUnavailable("CONTENTION_EXCEEDED", "Budget under contention, retry later")
	ErrInternalServerError = errors.InternalServer("INTERNAL_SERVER_ERROR", "Internal server error")
)

// NewBadRequest creates a new bad request error.
func NewBadRequest(reason, message string) *errors.Error {
	return errors.BadRequest(reason, message)
}

// NewNotFound creates a new not found error.
func NewNotFound(reason, message string) *errors.Error {
	return errors.NotFound(reason, message)
}

// NewInternalServerError creates a new internal server error.
func NewInternalServerError(reason, message string) *errors.Error {
	return errors.InternalServer(reason, message)
}
