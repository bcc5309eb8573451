package oidc

import "time"

// Clock abstracts the time source so expiry logic is testable.
// Production code uses SystemClock; tests inject a controllable clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now
type SystemClock struct{}

// Now returns the current wall-clock time
func (SystemClock) Now() time.Time {
	return time.Now()
}
