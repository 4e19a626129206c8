package sched

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/evan-idocoding/framekit/rt/clock"
)

type taskKind uint8

const (
	kindOnce taskKind = iota
	kindDelayed
	kindPeriodic
	kindWhen
)

// task is the Handle implementation for every kind of submission.
type task struct {
	s     *Scheduler
	id    string
	name  string
	attrs []slog.Attr
	owner any
	kind  taskKind
	fn    Func

	state atomic.Int32 // TaskState

	doneOnce sync.Once
	done     chan struct{}
	err      error // written once before done is closed

	// Guarded by s.mu.
	timer clock.Timer

	// Periodic only.
	period  time.Duration
	base    time.Time
	running atomic.Bool

	// Conditional only.
	cond func() bool
}

func (s *Scheduler) newTask(kind taskKind, owner any, fn Func, opts []TaskOption) *task {
	tc := applyTaskOptions(opts)
	return &task{
		s:     s,
		id:    uuid.NewString(),
		name:  tc.name,
		attrs: tc.attrs,
		owner: owner,
		kind:  kind,
		fn:    fn,
		done:  make(chan struct{}),
	}
}

func (t *task) ID() string            { return t.id }
func (t *task) Name() string          { return t.name }
func (t *task) Owner() any            { return t.owner }
func (t *task) Done() <-chan struct{} { return t.done }
func (t *task) State() TaskState      { return TaskState(t.state.Load()) }

func (t *task) isPending() bool { return t.State() == TaskPending }

func (t *task) startRunning() bool {
	return t.state.CompareAndSwap(int32(TaskPending), int32(TaskRunning))
}

func (t *task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *task) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *task) Cancel() bool {
	if !t.state.CompareAndSwap(int32(TaskPending), int32(TaskCanceled)) {
		return false
	}
	t.s.untrackTimer(t)
	t.s.stats.canceled.Add(1)
	t.close(ErrCanceled)
	return true
}

// settle moves a running task to its terminal state.
func (t *task) settle(err error) {
	st := TaskDone
	if err != nil {
		st = TaskFailed
	}
	t.state.Store(int32(st))
	t.close(err)
}

func (t *task) close(err error) {
	t.doneOnce.Do(func() {
		t.err = err
		close(t.done)
	})
}

func (s *Scheduler) rejected(fn Func, owner any, err error, opts []TaskOption) *task {
	t := s.newTask(kindOnce, owner, fn, opts)
	t.state.Store(int32(TaskRejected))
	t.close(err)
	s.stats.rejected.Add(1)
	return t
}
