// Package clock abstracts time and timer scheduling so the engine can derive
// every deadline from wall-clock deltas and so tests can drive timers
// deterministically. All engine delays (reveal delays, acceptance countdowns,
// auto-cancel and soft deadlines, re-alert loops) go through a Scheduler and
// are cancellable by handle.
package clock

import "time"

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// Timer is a handle to a scheduled callback. Stop cancels the callback if it
// has not fired yet and reports whether cancellation happened in time.
type Timer interface {
	Stop() bool
}

// Scheduler schedules one-shot callbacks and provides current time.
type Scheduler interface {
	Clock
	After(d time.Duration, fn func()) Timer
}

// System is the production scheduler backed by the runtime timers.
type System struct{}

// NewSystem creates the production scheduler.
func NewSystem() System {
	return System{}
}

// Now returns current wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// After runs fn on its own goroutine after d elapses.
func (System) After(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}
