package engine

import (
	"fmt"

	"github.com/roach88/fluxora/internal/domain"
)

// Op is a lifecycle event applied to a stream's status.
type Op uint8

const (
	OpPause Op = iota
	OpResume
	OpCancel
	OpWithdraw
	// OpComplete is the automatic step taken by a withdrawal that drains a
	// fully vested stream.
	OpComplete
)

var opNames = [...]string{
	OpPause:    "pause",
	OpResume:   "resume",
	OpCancel:   "cancel",
	OpWithdraw: "withdraw",
	OpComplete: "complete",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// transitions is the full lifecycle graph. Anything absent is illegal.
var transitions = map[domain.Status]map[Op]domain.Status{
	domain.StatusActive: {
		OpPause:    domain.StatusPaused,
		OpCancel:   domain.StatusCancelled,
		OpWithdraw: domain.StatusActive,
		OpComplete: domain.StatusCompleted,
	},
	domain.StatusPaused: {
		OpResume: domain.StatusActive,
		OpCancel: domain.StatusCancelled,
	},
	// Residual accrued funds stay claimable after cancellation.
	domain.StatusCancelled: {
		OpWithdraw: domain.StatusCancelled,
	},
	domain.StatusCompleted: {},
}

// Transition returns the status reached by applying op to from, or an error
// wrapping domain.ErrInvalidState.
func Transition(from domain.Status, op Op) (domain.Status, error) {
	if to, ok := transitions[from][op]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: cannot %s a %s stream", domain.ErrInvalidState, op, from)
}
