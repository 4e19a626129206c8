// Package clock provides the time source used by the scheduler and the frame mirror.
//
// Production code uses Real. Tests use Fake, whose timers fire only when Advance is
// called, so delayed retries and periodic runs can be driven deterministically:
//
//	c := clock.Fake(time.Unix(0, 0))
//	s := sched.New(sched.WithClock(c))
//	s.ScheduleDelayed(work, time.Second)
//	c.WaitForTimers(1)
//	c.Advance(time.Second) // work is submitted to the pool
package clock

import "time"

// Clock is the subset of the time package the runtime depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine (Real) or synchronously inside Advance (Fake)
	// once d has elapsed. If d <= 0 the Real clock fires as soon as possible and the
	// Fake clock fires on the next Advance.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was stopped
	// before it fired.
	Stop() bool
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
