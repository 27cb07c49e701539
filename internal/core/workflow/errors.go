package workflow

import "errors"

var (
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrValueTypeMismatch = errors.New("condition value type mismatch")
	ErrUnknownActionType = errors.New("unknown action type")
	ErrInvalidTransition = errors.New("invalid execution status transition")
	ErrExecutionTerminal = errors.New("execution already finished")
	ErrTenantNotFound    = errors.New("tenant not found for subject")
	ErrInvalidExpiry     = errors.New("invalid expiry expression")
)
