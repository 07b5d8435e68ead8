package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/fluxora/internal/domain"
)

// OpError is returned by every engine operation that fails.
//
// It wraps exactly one domain taxonomy error (ErrInvalidState, ...), so
// errors.Is(err, domain.ErrInvalidState) works through it, and records which
// operation and stream the failure belongs to.
type OpError struct {
	// Op is the operation name ("create", "pause", ...).
	Op string

	// StreamID is meaningful only when HasStream is true.
	StreamID  domain.StreamID
	HasStream bool

	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.HasStream {
		return fmt.Sprintf("%s stream %d: %v", e.Op, e.StreamID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the wrapped taxonomy error.
func (e *OpError) Unwrap() error { return e.Err }

// Code returns the taxonomy code of the wrapped error.
func (e *OpError) Code() string { return domain.CodeOf(e.Err) }

func opErr(op string, err error) error {
	return &OpError{Op: op, Err: err}
}

func streamErr(op string, id domain.StreamID, err error) error {
	return &OpError{Op: op, StreamID: id, HasStream: true, Err: err}
}

// IsInvalidState reports whether err is an illegal-transition failure.
func IsInvalidState(err error) bool { return errors.Is(err, domain.ErrInvalidState) }

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool { return errors.Is(err, domain.ErrUnauthorized) }

// IsNotFound reports whether err is an unknown-stream failure.
func IsNotFound(err error) bool { return errors.Is(err, domain.ErrStreamNotFound) }
