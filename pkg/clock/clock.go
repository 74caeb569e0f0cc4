package clock

import "time"

// Clock supplies "now" so that expiry decisions and integrity timestamps
// are testable.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns the current time
func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a clock pinned to a single instant, for tests.
type Fixed struct {
	T time.Time
}

// Now returns the pinned instant
func (f Fixed) Now() time.Time {
	return f.T
}
