package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Wrapf creates a new error with the same code and a formatted message.
func Wrapf(base *Error, format string, args ...any) *Error {
	return &Error{
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Predefined errors
var (
	// Configuration errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Data errors
	ErrSymbolNotFound   = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrMalformedRow     = &Error{Code: "MALFORMED_ROW", Message: "malformed price row"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Execution errors
	ErrInvalidSignal     = &Error{Code: "INVALID_SIGNAL", Message: "signal failed validation"}
	ErrInsufficientFunds = &Error{Code: "INSUFFICIENT_FUNDS", Message: "insufficient funds for trade"}
	ErrNoPosition        = &Error{Code: "NO_POSITION", Message: "no position to sell"}
	ErrOrderRejected     = &Error{Code: "ORDER_REJECTED", Message: "order rejected by portfolio rules"}

	// Allocation errors
	ErrAllocationFailed = &Error{Code: "ALLOCATION_FAILED", Message: "allocation failed"}

	// Strategy errors
	ErrStrategyFailed = &Error{Code: "STRATEGY_FAILED", Message: "strategy evaluation failed"}

	// System errors
	ErrInternal = &Error{Code: "INTERNAL", Message: "unexpected internal failure"}
)
