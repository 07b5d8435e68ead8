package domain

import "errors"

// Error is a member of the fluxora error taxonomy.
//
// Every failure surfaced by the engine wraps exactly one of the sentinel
// values below, so callers match with errors.Is and map to wire codes with
// CodeOf.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrAlreadyInitialized  = &Error{Code: "ALREADY_INITIALIZED", Message: "already initialized"}
	ErrNotInitialized      = &Error{Code: "NOT_INITIALIZED", Message: "not initialized"}
	ErrUnauthorized        = &Error{Code: "UNAUTHORIZED", Message: "unauthorized"}
	ErrStreamNotFound      = &Error{Code: "STREAM_NOT_FOUND", Message: "stream not found"}
	ErrInvalidState        = &Error{Code: "INVALID_STATE", Message: "invalid state"}
	ErrInvalidParams       = &Error{Code: "INVALID_PARAMS", Message: "invalid params"}
	ErrInsufficientBalance = &Error{Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance"}
	ErrNothingToWithdraw   = &Error{Code: "NOTHING_TO_WITHDRAW", Message: "nothing to withdraw"}
	ErrArithmeticOverflow  = &Error{Code: "ARITHMETIC_OVERFLOW", Message: "arithmetic overflow"}
)

// Taxonomy lists every sentinel in declaration order.
var Taxonomy = []*Error{
	ErrAlreadyInitialized,
	ErrNotInitialized,
	ErrUnauthorized,
	ErrStreamNotFound,
	ErrInvalidState,
	ErrInvalidParams,
	ErrInsufficientBalance,
	ErrNothingToWithdraw,
	ErrArithmeticOverflow,
}

// CodeOf returns the taxonomy code wrapped by err, or "" if err carries none.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ErrorForCode returns the sentinel with the given code.
func ErrorForCode(code string) (*Error, bool) {
	for _, e := range Taxonomy {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}
