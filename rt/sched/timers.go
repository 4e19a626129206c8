package sched

import (
	"context"
	"time"

	"github.com/evan-idocoding/framekit/rt/safego"
)

// ScheduleDelayed runs fn once after delay. A delay <= 0 queues it immediately.
func (s *Scheduler) ScheduleDelayed(fn Func, delay time.Duration, opts ...TaskOption) Handle {
	if fn == nil {
		panic("sched: ScheduleDelayed called with nil func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptErrLocked(); err != nil {
		return s.rejected(fn, nil, err, opts)
	}
	t := s.newTask(kindDelayed, nil, fn, opts)
	s.stats.submitted.Add(1)
	if delay <= 0 {
		s.pushLocked(func() { s.runTask(t) }, true)
		return t
	}
	s.timers[t] = struct{}{}
	t.timer = s.clock.AfterFunc(delay, func() { s.fire(t) })
	return t
}

// SchedulePeriodic runs fn at a fixed rate: first after initialDelay, then every period.
// The handle stays pending until canceled, StopSession or Shutdown.
func (s *Scheduler) SchedulePeriodic(fn Func, initialDelay, period time.Duration, opts ...TaskOption) Handle {
	if fn == nil {
		panic("sched: SchedulePeriodic called with nil func")
	}
	if period <= 0 {
		panic("sched: period must be > 0")
	}
	if initialDelay < 0 {
		initialDelay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptErrLocked(); err != nil {
		return s.rejected(fn, nil, err, opts)
	}
	t := s.newTask(kindPeriodic, nil, fn, opts)
	t.period = period
	t.base = s.clock.Now().Add(initialDelay)
	s.stats.submitted.Add(1)
	s.timers[t] = struct{}{}
	t.timer = s.clock.AfterFunc(initialDelay, func() { s.fire(t) })
	return t
}

// ScheduleWhen runs fn once cond reports true. cond is evaluated on pool workers and must
// not block. If cond panics the handle fails with ErrPanicked.
func (s *Scheduler) ScheduleWhen(cond func() bool, fn Func, opts ...TaskOption) Handle {
	if cond == nil || fn == nil {
		panic("sched: ScheduleWhen called with nil func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptErrLocked(); err != nil {
		return s.rejected(fn, nil, err, opts)
	}
	t := s.newTask(kindWhen, nil, fn, opts)
	t.cond = cond
	s.stats.submitted.Add(1)
	s.timers[t] = struct{}{}
	s.pushLocked(func() { s.poll(t) }, true)
	return t
}

// fire is the timer callback of delayed and periodic handles.
func (s *Scheduler) fire(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.isPending() || s.state != stateOpen {
		return
	}
	if _, ok := s.timers[t]; !ok {
		return
	}
	switch t.kind {
	case kindPeriodic:
		now := s.clock.Now()
		next := nextTickAfter(t.base, t.period, now)
		t.timer = s.clock.AfterFunc(next.Sub(now), func() { s.fire(t) })
		if t.running.Load() {
			return
		}
		s.pushLocked(func() { s.runPeriodic(t) }, true)
	case kindWhen:
		t.timer = nil
		s.pushLocked(func() { s.poll(t) }, true)
	default:
		delete(s.timers, t)
		t.timer = nil
		s.pushLocked(func() { s.runTask(t) }, true)
	}
}

func (s *Scheduler) runPeriodic(t *task) {
	if !t.running.CompareAndSwap(false, true) {
		return
	}
	defer t.running.Store(false)
	if !t.isPending() {
		return
	}
	_ = s.execute(t)
}

// poll evaluates a conditional handle once and either runs it or re-submits the check.
func (s *Scheduler) poll(t *task) {
	if !t.isPending() {
		return
	}
	ready, err := s.checkCond(t)
	if err != nil {
		s.untrackTimer(t)
		if t.startRunning() {
			s.stats.failed.Add(1)
			s.stats.recordFailure(err, s.clock.Now())
			t.settle(err)
		}
		return
	}
	if !ready {
		s.repoll(t)
		return
	}
	if !t.startRunning() {
		return
	}
	s.untrackTimer(t)
	t.settle(s.execute(t))
}

func (s *Scheduler) checkCond(t *task) (ready bool, err error) {
	res := safego.Run(s.ctx, func(context.Context) {
		ready = t.cond()
	}, s.runOptions(t)...)
	if res.Panicked {
		s.stats.panicked.Add(1)
		return false, wrapPanic(res.PanicValue)
	}
	return ready, nil
}

func (s *Scheduler) repoll(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.isPending() || s.state != stateOpen {
		return
	}
	if s.cfg.pollInterval == 0 {
		s.pushLocked(func() { s.poll(t) }, true)
		return
	}
	t.timer = s.clock.AfterFunc(s.cfg.pollInterval, func() { s.fire(t) })
}

func (s *Scheduler) untrackTimer(t *task) {
	s.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	delete(s.timers, t)
	s.mu.Unlock()
}

func (s *Scheduler) takeTimersLocked() []*task {
	out := make([]*task, 0, len(s.timers))
	for t := range s.timers {
		out = append(out, t)
	}
	return out
}

func nextTickAfter(base time.Time, interval time.Duration, now time.Time) time.Time {
	if interval <= 0 {
		return now
	}
	if now.Before(base) {
		return base
	}
	k := int64(now.Sub(base)/interval) + 1 // strictly after now
	return base.Add(time.Duration(k) * interval)
}
