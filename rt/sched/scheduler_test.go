package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evan-idocoding/framekit/rt/clock"
	"github.com/evan-idocoding/framekit/rt/safego"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := New(opts...)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestNew_InvalidConfigPanics(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		opt  Option
	}{
		{"workers", WithWorkers(0)},
		{"poll", WithPollInterval(-time.Millisecond)},
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", tc.name)
				}
			}()
			_ = New(tc.opt)
		}()
	}
}

func TestSubmit_RunsAndSettles(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, WithWorkers(2))
	h := s.Submit(func(context.Context) error { return nil }, WithName("noop"))
	if err := h.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait err=%v, want nil", err)
	}
	if got := h.State(); got != TaskDone {
		t.Fatalf("State=%v, want done", got)
	}
	if h.Name() != "noop" || h.ID() == "" || h.Owner() != nil {
		t.Fatalf("unexpected handle identity: name=%q id=%q owner=%v", h.Name(), h.ID(), h.Owner())
	}
}

func TestSubmit_FailureIsolation(t *testing.T) {
	t.Parallel()

	var reported atomic.Int32
	s := newTestScheduler(t,
		WithWorkers(1),
		WithErrorHandler(func(context.Context, safego.ErrorInfo) { reported.Add(1) }),
		WithPanicHandler(func(context.Context, safego.PanicInfo) { reported.Add(1) }),
	)
	boom := errors.New("boom")

	hErr := s.Submit(func(context.Context) error { return boom })
	hPanic := s.Submit(func(context.Context) error { panic("kaboom") })
	hOK := s.Submit(func(context.Context) error { return nil })

	ctx := waitCtx(t)
	if err := hErr.Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("error task err=%v, want boom", err)
	}
	if err := hPanic.Wait(ctx); !errors.Is(err, ErrPanicked) {
		t.Fatalf("panic task err=%v, want ErrPanicked", err)
	}
	if err := hOK.Wait(ctx); err != nil {
		t.Fatalf("ok task err=%v, want nil", err)
	}
	if hErr.State() != TaskFailed || hPanic.State() != TaskFailed {
		t.Fatalf("states=%v/%v, want failed/failed", hErr.State(), hPanic.State())
	}
	if got := reported.Load(); got != 2 {
		t.Fatalf("reported=%d, want 2", got)
	}

	st := s.Stats()
	if st.Failed != 2 || st.Panicked != 1 || st.Completed != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if st.LastError == "" {
		t.Fatalf("LastError not recorded")
	}
}

func TestHandle_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, WithWorkers(1))
	gate := make(chan struct{})
	blocker := s.Submit(func(context.Context) error { <-gate; return nil })

	var ran atomic.Bool
	h := s.Submit(func(context.Context) error { ran.Store(true); return nil })
	if !h.Cancel() {
		t.Fatalf("Cancel=false, want true")
	}
	if h.Cancel() {
		t.Fatalf("second Cancel=true, want false")
	}
	close(gate)

	ctx := waitCtx(t)
	_ = blocker.Wait(ctx)
	if err := h.Wait(ctx); !errors.Is(err, ErrCanceled) {
		t.Fatalf("err=%v, want ErrCanceled", err)
	}
	if err := s.StopSession(ctx); err != nil {
		t.Fatalf("StopSession err=%v", err)
	}
	if ran.Load() {
		t.Fatalf("canceled task ran")
	}
	if blocker.Cancel() {
		t.Fatalf("Cancel after completion returned true")
	}
}

func TestSubmitOwned_SerialInOrder(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, WithWorkers(8))
	owner := new(int)

	const n = 200
	var (
		mu      sync.Mutex
		order   []int
		active  atomic.Int32
		overlap atomic.Bool
	)
	var last Handle
	for i := 0; i < n; i++ {
		i := i
		last = s.SubmitOwned(owner, func(context.Context) error {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			defer active.Add(-1)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}, false)
	}
	if err := last.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait err=%v", err)
	}
	if overlap.Load() {
		t.Fatalf("owned tasks overlapped")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != n {
		t.Fatalf("ran %d tasks, want %d", len(order), n)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d]=%d, want %d", i, v, i)
		}
	}
}

func TestSubmitOwned_DistinctOwnersRunConcurrently(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, WithWorkers(2))
	aStarted := make(chan struct{})
	bRan := make(chan struct{})

	hA := s.SubmitOwned("a", func(ctx context.Context) error {
		close(aStarted)
		select {
		case <-bRan:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("owner b never ran")
		}
	}, false)
	<-aStarted
	s.SubmitOwned("b", func(context.Context) error { close(bRan); return nil }, false)

	if err := hA.Wait(waitCtx(t)); err != nil {
		t.Fatalf("a err=%v", err)
	}
}

func TestSubmitOwned_CancelPending(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, WithWorkers(4))
	owner := "registry"
	gate := make(chan struct{})
	started := make(chan struct{})

	var ran []string
	var mu sync.Mutex
	record := func(name string) Func {
		return func(context.Context) error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		}
	}

	first := s.SubmitOwned(owner, func(context.Context) error {
		close(started)
		<-gate
		mu.Lock()
		ran = append(ran, "first")
		mu.Unlock()
		return nil
	}, false)
	<-started

	p1 := s.SubmitOwned(owner, record("p1"), false)
	p2 := s.SubmitOwned(owner, record("p2"), false)
	final := s.SubmitOwned(owner, record("final"), true)

	if p1.State() != TaskCanceled || p2.State() != TaskCanceled {
		t.Fatalf("pending states=%v/%v, want canceled", p1.State(), p2.State())
	}
	if first.State() != TaskRunning {
		t.Fatalf("running task state=%v, want running", first.State())
	}
	close(gate)

	if err := final.Wait(waitCtx(t)); err != nil {
		t.Fatalf("final err=%v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[0] != "first" || ran[1] != "final" {
		t.Fatalf("ran=%v, want [first final]", ran)
	}
}

func TestSubmitOwned_ChainSurvivesFailures(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t,
		WithWorkers(2),
		WithErrorHandler(func(context.Context, safego.ErrorInfo) {}),
		WithPanicHandler(func(context.Context, safego.PanicInfo) {}),
	)
	owner := struct{ name string }{"o"}

	s.SubmitOwned(owner, func(context.Context) error { panic("first") }, false)
	s.SubmitOwned(owner, func(context.Context) error { return errors.New("second") }, false)
	canceled := s.SubmitOwned(owner, func(context.Context) error { return nil }, false)
	canceled.Cancel()
	last := s.SubmitOwned(owner, func(context.Context) error { return nil }, false)

	if err := last.Wait(waitCtx(t)); err != nil {
		t.Fatalf("last err=%v", err)
	}
	if got := s.Stats().Owners; got != 0 {
		t.Fatalf("Owners=%d after drain, want 0", got)
	}
}

func TestScheduleDelayed_FakeClock(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	s := newTestScheduler(t, WithWorkers(1), WithClock(clk))

	ran := make(chan struct{})
	h := s.ScheduleDelayed(func(context.Context) error { close(ran); return nil }, time.Second)
	if got := s.Stats().Timers; got != 1 {
		t.Fatalf("Timers=%d, want 1", got)
	}

	clk.Advance(999 * time.Millisecond)
	select {
	case <-ran:
		t.Fatalf("ran before deadline")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Advance(time.Millisecond)
	if err := h.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait err=%v", err)
	}
	if got := s.Stats().Timers; got != 0 {
		t.Fatalf("Timers=%d after fire, want 0", got)
	}
}

func TestScheduleDelayed_CancelStopsTimer(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	s := newTestScheduler(t, WithClock(clk))

	h := s.ScheduleDelayed(func(context.Context) error { return nil }, time.Minute)
	if !h.Cancel() {
		t.Fatalf("Cancel=false")
	}
	if got := clk.PendingCount(); got != 0 {
		t.Fatalf("PendingCount=%d, want 0", got)
	}
	if !errors.Is(h.Err(), ErrCanceled) {
		t.Fatalf("Err=%v, want ErrCanceled", h.Err())
	}
}

func TestSchedulePeriodic_FixedRate(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	s := newTestScheduler(t, WithWorkers(2), WithClock(clk))

	runs := make(chan time.Time, 16)
	h := s.SchedulePeriodic(func(context.Context) error {
		runs <- clk.Now()
		return nil
	}, 10*time.Millisecond, 100*time.Millisecond)

	ctx := waitCtx(t)
	expect := func(want time.Duration) {
		t.Helper()
		select {
		case at := <-runs:
			if got := at.Sub(time.Unix(0, 0)); got != want {
				t.Fatalf("run at %v, want %v", got, want)
			}
		case <-ctx.Done():
			t.Fatalf("no run at %v", want)
		}
	}

	clk.Advance(10 * time.Millisecond)
	expect(10 * time.Millisecond)
	clk.Advance(100 * time.Millisecond)
	expect(110 * time.Millisecond)
	// Missed ticks are not caught up.
	clk.Advance(350 * time.Millisecond)
	expect(460 * time.Millisecond)

	if h.State() != TaskPending {
		t.Fatalf("periodic state=%v, want pending", h.State())
	}
	if !h.Cancel() {
		t.Fatalf("Cancel=false")
	}
	clk.Advance(time.Second)
	select {
	case <-runs:
		t.Fatalf("ran after Cancel")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSchedulePeriodic_SkipsOverlappingTick(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	s := newTestScheduler(t, WithWorkers(4), WithClock(clk))

	gate := make(chan struct{})
	started := make(chan struct{}, 8)
	var count atomic.Int32
	h := s.SchedulePeriodic(func(context.Context) error {
		count.Add(1)
		started <- struct{}{}
		<-gate
		return nil
	}, 0, time.Second)
	defer h.Cancel()

	clk.Advance(0)
	<-started
	clk.WaitForTimers(1)
	clk.Advance(time.Second)
	clk.Advance(time.Second)
	close(gate)

	if err := s.StopSession(waitCtx(t)); err != nil {
		t.Fatalf("StopSession err=%v", err)
	}
	if got := count.Load(); got != 1 {
		t.Fatalf("runs=%d, want 1", got)
	}
}

func TestScheduleWhen_RunsOnceConditionHolds(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	s := newTestScheduler(t, WithWorkers(2), WithClock(clk), WithPollInterval(5*time.Millisecond))

	var ready atomic.Bool
	var checks atomic.Int32
	var runs atomic.Int32
	h := s.ScheduleWhen(func() bool {
		checks.Add(1)
		return ready.Load()
	}, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	clk.WaitForTimers(1)
	clk.Advance(5 * time.Millisecond)
	clk.WaitForTimers(1)
	if h.State() != TaskPending {
		t.Fatalf("state=%v, want pending", h.State())
	}

	ready.Store(true)
	clk.Advance(5 * time.Millisecond)
	if err := h.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait err=%v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("runs=%d, want 1", runs.Load())
	}
	if checks.Load() < 3 {
		t.Fatalf("checks=%d, want >= 3", checks.Load())
	}
}

func TestScheduleWhen_ZeroPollInterval(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, WithWorkers(2), WithPollInterval(0))
	var n atomic.Int32
	h := s.ScheduleWhen(func() bool { return n.Add(1) >= 50 }, func(context.Context) error { return nil })
	if err := h.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait err=%v", err)
	}
}

func TestScheduleWhen_ConditionPanics(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, WithPanicHandler(func(context.Context, safego.PanicInfo) {}))
	h := s.ScheduleWhen(func() bool { panic("bad cond") }, func(context.Context) error { return nil })
	if err := h.Wait(waitCtx(t)); !errors.Is(err, ErrPanicked) {
		t.Fatalf("err=%v, want ErrPanicked", err)
	}
	if h.State() != TaskFailed {
		t.Fatalf("state=%v, want failed", h.State())
	}
}

func TestStopSession_CancelsTimersAndSwallowsFailures(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	var reported atomic.Int32
	s := newTestScheduler(t,
		WithWorkers(2),
		WithClock(clk),
		WithErrorHandler(func(context.Context, safego.ErrorInfo) { reported.Add(1) }),
	)

	delayed := s.ScheduleDelayed(func(context.Context) error { return nil }, time.Hour)
	periodic := s.SchedulePeriodic(func(context.Context) error { return nil }, time.Hour, time.Hour)
	when := s.ScheduleWhen(func() bool { return false }, func(context.Context) error { return nil })

	gate := make(chan struct{})
	started := make(chan struct{})
	inflight := s.Submit(func(context.Context) error {
		close(started)
		<-gate
		return errors.New("late failure")
	})
	<-started

	stopCtx := waitCtx(t)
	stopped := make(chan error, 1)
	go func() { stopped <- s.StopSession(stopCtx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !s.Stats().Stopping {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler never entered stopping")
		}
		time.Sleep(time.Millisecond)
	}
	if h := s.Submit(func(context.Context) error { return nil }); !errors.Is(h.Err(), ErrStopping) || h.State() != TaskRejected {
		t.Fatalf("submit while stopping: state=%v err=%v", h.State(), h.Err())
	}
	close(gate)

	if err := <-stopped; err != nil {
		t.Fatalf("StopSession err=%v", err)
	}
	for name, h := range map[string]Handle{"delayed": delayed, "periodic": periodic, "when": when} {
		if h.State() != TaskCanceled {
			t.Fatalf("%s state=%v, want canceled", name, h.State())
		}
	}
	if inflight.State() != TaskFailed {
		t.Fatalf("in-flight state=%v, want failed", inflight.State())
	}
	if got := reported.Load(); got != 0 {
		t.Fatalf("reported=%d during stop, want 0", got)
	}

	// The next session starts clean.
	if err := s.Submit(func(context.Context) error { return nil }).Wait(waitCtx(t)); err != nil {
		t.Fatalf("submit after StopSession err=%v", err)
	}
	if st := s.Stats(); st.Stopping || st.Timers != 0 {
		t.Fatalf("stats after stop=%+v", st)
	}
}

func TestShutdown_IdempotentAndRejects(t *testing.T) {
	t.Parallel()

	s := New(WithWorkers(2))
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		s.Submit(func(context.Context) error { ran.Add(1); return nil })
	}
	if err := s.Shutdown(waitCtx(t)); err != nil {
		t.Fatalf("Shutdown err=%v", err)
	}
	if err := s.Shutdown(waitCtx(t)); err != nil {
		t.Fatalf("second Shutdown err=%v", err)
	}
	if got := ran.Load(); got != 10 {
		t.Fatalf("ran=%d, want 10 (accepted work drains)", got)
	}
	h := s.SubmitOwned("x", func(context.Context) error { return nil }, false)
	if !errors.Is(h.Err(), ErrClosed) {
		t.Fatalf("err=%v, want ErrClosed", h.Err())
	}
	if err := s.StopSession(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("StopSession err=%v, want ErrClosed", err)
	}
	if !s.Stats().Closed {
		t.Fatalf("Closed=false")
	}
}

func TestShutdown_TimeoutCancelsTaskContext(t *testing.T) {
	t.Parallel()

	s := New(WithWorkers(1))
	started := make(chan struct{})
	h := s.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown err=%v, want deadline exceeded", err)
	}
	if err := h.Wait(waitCtx(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("task err=%v, want context.Canceled", err)
	}
	if err := s.Shutdown(waitCtx(t)); err != nil {
		t.Fatalf("second Shutdown err=%v", err)
	}
}

func TestTaskState_String(t *testing.T) {
	t.Parallel()

	if TaskRejected.String() != "rejected" || TaskState(42).String() != "TaskState(42)" {
		t.Fatalf("unexpected String output")
	}
	if TaskRunning.Terminal() || !TaskCanceled.Terminal() {
		t.Fatalf("unexpected Terminal output")
	}
}
