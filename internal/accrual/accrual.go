// Package accrual is the vesting arithmetic shared by the lifecycle engine,
// replay and the CLI. Every function here is pure: no storage, no clock, no
// authorization.
package accrual

import (
	"fmt"

	"github.com/roach88/fluxora/internal/amount"
	"github.com/roach88/fluxora/internal/domain"
)

// Schedule is the immutable vesting part of a stream.
type Schedule struct {
	Deposit amount.Amount
	Rate    amount.Amount
	Start   uint64
	Cliff   uint64
	End     uint64
}

// ScheduleOf extracts the schedule of s.
func ScheduleOf(s domain.Stream) Schedule {
	return Schedule{Deposit: s.Deposit, Rate: s.Rate, Start: s.Start, Cliff: s.Cliff, End: s.End}
}

// Accrued returns how much of the deposit has vested at now.
//
// Elapsed time is always measured from Start; the cliff only hides the
// balance until it is reached. The result is monotonically non-decreasing in
// now and never exceeds Deposit.
func Accrued(s Schedule, now uint64) amount.Amount {
	if now < s.Cliff {
		return amount.Zero
	}
	end := min(now, s.End)
	var elapsed uint64
	if end > s.Start {
		elapsed = end - s.Start
	}
	accrued := amount.FromUint64(elapsed).SaturatingMul(s.Rate)
	return amount.MinOf(accrued, s.Deposit)
}

// StreamAccrued is Accrued for a stored stream. A cancelled stream stops
// vesting at CancelledAt, so its accrual is frozen at what was vested when
// the refund was computed.
func StreamAccrued(s domain.Stream, now uint64) amount.Amount {
	if s.Status == domain.StatusCancelled {
		now = min(now, s.CancelledAt)
	}
	return Accrued(ScheduleOf(s), now)
}

// Unstreamed returns the refund owed to the sender on cancellation:
// max(0, deposit - accrued).
func Unstreamed(deposit, accrued amount.Amount) amount.Amount {
	return amount.MaxOf(deposit.SaturatingSub(accrued), amount.Zero)
}

// Withdrawable returns max(0, accrued - withdrawn).
func Withdrawable(accrued, withdrawn amount.Amount) amount.Amount {
	return amount.MaxOf(accrued.SaturatingSub(withdrawn), amount.Zero)
}

// TotalStreamable returns Rate * (End - Start), failing with
// ErrArithmeticOverflow when the product does not fit in 128 bits.
func TotalStreamable(s Schedule) (amount.Amount, error) {
	var duration uint64
	if s.End > s.Start {
		duration = s.End - s.Start
	}
	total, ok := s.Rate.CheckedMul(amount.FromUint64(duration))
	if !ok {
		return amount.Zero, fmt.Errorf("%w: rate %s over %d seconds", domain.ErrArithmeticOverflow, s.Rate, duration)
	}
	return total, nil
}

// ValidateSchedule checks the creation preconditions on s in a fixed order:
// deposit, rate, time ordering, cliff bounds, overflow, coverage.
func ValidateSchedule(s Schedule) error {
	if s.Deposit.Sign() <= 0 {
		return fmt.Errorf("%w: deposit must be positive, got %s", domain.ErrInvalidParams, s.Deposit)
	}
	if s.Rate.Sign() <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %s", domain.ErrInvalidParams, s.Rate)
	}
	if s.Start >= s.End {
		return fmt.Errorf("%w: start %d must be before end %d", domain.ErrInvalidParams, s.Start, s.End)
	}
	if s.Cliff < s.Start || s.Cliff > s.End {
		return fmt.Errorf("%w: cliff %d outside [%d, %d]", domain.ErrInvalidParams, s.Cliff, s.Start, s.End)
	}
	total, err := TotalStreamable(s)
	if err != nil {
		return err
	}
	if s.Deposit.Cmp(total) < 0 {
		return fmt.Errorf("%w: deposit %s does not cover %s", domain.ErrInvalidParams, s.Deposit, total)
	}
	return nil
}
