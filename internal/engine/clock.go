package engine

import "time"

// Clock supplies the current ledger time in seconds.
//
// The host supplies one timestamp per invocation; implementations must be
// monotonic.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current Unix time in seconds.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// FixedClock always returns the same instant. Used for one-shot CLI
// invocations with --now.
type FixedClock uint64

// Now returns c.
func (c FixedClock) Now() uint64 { return uint64(c) }
