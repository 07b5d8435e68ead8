package domain

import (
	"fmt"

	"github.com/roach88/fluxora/internal/amount"
)

// StreamID identifies a stream. Ids are allocated densely from 0 and never
// reused.
type StreamID uint64

// Status is the lifecycle state of a stream.
type Status uint8

const (
	StatusActive Status = iota
	StatusPaused
	StatusCompleted
	StatusCancelled
)

var statusNames = [...]string{
	StatusActive:    "Active",
	StatusPaused:    "Paused",
	StatusCompleted: "Completed",
	StatusCancelled: "Cancelled",
}

// String returns the status name ("Active", "Paused", ...).
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stream status %q", name)
}

// MarshalText encodes the status name.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid stream status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Stream is a single linear-vesting payment schedule from one sender to one
// recipient.
//
// INVARIANTS (hold after every committed mutation):
//   - 0 <= Withdrawn <= Deposit
//   - Rate * (End - Start) <= Deposit
//   - Start <= Cliff <= End and Start < End
//   - Deposit, Rate and the times never change after creation
//   - CancelledAt is set once, by the cancellation, and is zero otherwise
type Stream struct {
	ID        StreamID      `json:"id"`
	Sender    Identity      `json:"sender"`
	Recipient Identity      `json:"recipient"`
	Deposit   amount.Amount `json:"deposit_amount"`
	Rate      amount.Amount `json:"rate_per_second"`
	Start     uint64        `json:"start_time"`
	Cliff     uint64        `json:"cliff_time"`
	End       uint64        `json:"end_time"`
	Withdrawn amount.Amount `json:"withdrawn_amount"`
	Status    Status        `json:"status"`

	// CancelledAt is when the stream was cancelled. Vesting stops there.
	CancelledAt uint64 `json:"cancelled_at"`
}

// Config is the write-once engine configuration.
type Config struct {
	// Token is the handle of the asset every stream moves.
	Token Identity `json:"token"`

	// Admin may pause, resume and cancel any stream.
	Admin Identity `json:"admin"`
}
