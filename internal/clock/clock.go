// Package clock abstracts wall time so services that stamp ledger records
// and note timestamps can be tested deterministically.
package clock

import "time"

// Clock yields the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Fixed is a Clock pinned to one instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
