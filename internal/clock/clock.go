// Package clock abstracts wall time and cancellable one-shot timers so that
// session and recovery deadlines can be driven deterministically in tests.
package clock

import "time"

// Clock provides the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the timer. It reports false if the timer already fired or was stopped.
	Stop() bool
}

type realClock struct{}

// New returns a Clock backed by the runtime's wall clock and timers.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
