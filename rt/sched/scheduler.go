package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evan-idocoding/framekit/rt/clock"
	"github.com/evan-idocoding/framekit/rt/safego"
)

type schedState int32

const (
	stateOpen schedState = iota
	stateStopping
	stateClosed
)

// job is one unit in the pool queue.
type job func()

// Scheduler is a bounded worker pool with owner-scoped FIFO chains and tracked timers.
//
// It is safe for concurrent use.
type Scheduler struct {
	cfg    config
	logger *slog.Logger
	clock  clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	wake     *sync.Cond
	state    schedState
	queue    []job
	owners   map[any]*ownerChain
	timers   map[*task]struct{}
	inflight int           // queued, owner-pending or running units
	idle     chan struct{} // closed when inflight drops to zero

	quiet   atomic.Bool // failures are swallowed while true
	workers sync.WaitGroup
	stats   counters
}

type ownerChain struct {
	active  *task
	pending []*task
}

type counters struct {
	running   atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	canceled  atomic.Uint64
	rejected  atomic.Uint64

	lastMu      sync.Mutex
	lastErr     string
	lastErrTime time.Time
}

// New creates a Scheduler and starts its workers.
func New(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.workers <= 0 {
		panic("sched: workers must be > 0")
	}
	if cfg.pollInterval < 0 {
		panic("sched: poll interval must be >= 0")
	}
	s := &Scheduler{
		cfg:    cfg,
		logger: cfg.logger,
		clock:  cfg.clock,
		owners: make(map[any]*ownerChain),
		timers: make(map[*task]struct{}),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	s.wake = sync.NewCond(&s.mu)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.workers.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go s.worker()
	}
	return s
}

// Submit queues fn to run once on any worker.
func (s *Scheduler) Submit(fn Func, opts ...TaskOption) Handle {
	if fn == nil {
		panic("sched: Submit called with nil func")
	}
	s.mu.Lock()
	if err := s.acceptErrLocked(); err != nil {
		s.mu.Unlock()
		return s.rejected(fn, nil, err, opts)
	}
	t := s.newTask(kindOnce, nil, fn, opts)
	s.stats.submitted.Add(1)
	s.pushLocked(func() { s.runTask(t) }, true)
	s.mu.Unlock()
	return t
}

// SubmitOwned queues fn on owner's chain. Tasks sharing an owner never overlap and start
// in submission order. If cancelPending is true, the owner's queued tasks that have not
// started are canceled first; a running task is not interrupted.
func (s *Scheduler) SubmitOwned(owner any, fn Func, cancelPending bool, opts ...TaskOption) Handle {
	if fn == nil {
		panic("sched: SubmitOwned called with nil func")
	}
	if owner == nil {
		panic("sched: SubmitOwned called with nil owner")
	}
	s.mu.Lock()
	if err := s.acceptErrLocked(); err != nil {
		s.mu.Unlock()
		return s.rejected(fn, owner, err, opts)
	}
	t := s.newTask(kindOnce, owner, fn, opts)
	s.stats.submitted.Add(1)

	ch := s.owners[owner]
	if ch == nil {
		ch = &ownerChain{}
		s.owners[owner] = ch
	}
	var dropped []*task
	if cancelPending {
		dropped = ch.pending
		ch.pending = nil
		s.releaseLocked(len(dropped))
	}
	s.inflight++
	if ch.active == nil {
		ch.active = t
		s.pushLocked(func() { s.runTask(t) }, false)
	} else {
		ch.pending = append(ch.pending, t)
	}
	s.mu.Unlock()

	for _, d := range dropped {
		d.Cancel()
	}
	return t
}

// runTask executes a one-shot task on the calling worker. Canceled tasks are skipped.
// Owned tasks hand their chain to the next entry no matter how the run ends.
func (s *Scheduler) runTask(t *task) {
	if t.owner != nil {
		defer s.advanceOwner(t.owner)
	}
	if !t.startRunning() {
		return
	}
	t.settle(s.execute(t))
}

// execute runs t.fn under safego and records the outcome.
func (s *Scheduler) execute(t *task) error {
	s.stats.running.Add(1)
	defer s.stats.running.Add(-1)

	res := safego.RunErr(s.ctx, t.fn, s.runOptions(t)...)

	var err error
	switch {
	case res.Panicked:
		s.stats.panicked.Add(1)
		err = wrapPanic(res.PanicValue)
	case res.Err != nil:
		err = res.Err
	}
	if err == nil {
		s.stats.completed.Add(1)
		return nil
	}
	s.stats.failed.Add(1)
	s.stats.recordFailure(err, s.clock.Now())
	return err
}

func (s *Scheduler) runOptions(t *task) []safego.Option {
	opts := []safego.Option{
		safego.WithID(t.id),
		safego.WithName(t.name),
		safego.WithAttrs(t.attrs...),
		safego.WithLogger(s.logger),
		safego.WithSuppress(s.quiet.Load),
	}
	if s.cfg.onError != nil {
		opts = append(opts, safego.WithErrorHandler(s.cfg.onError))
	}
	if s.cfg.onPanic != nil {
		opts = append(opts, safego.WithPanicHandler(s.cfg.onPanic))
	}
	return opts
}

func wrapPanic(v any) error {
	return fmt.Errorf("%w: %v", ErrPanicked, v)
}

func (s *Scheduler) advanceOwner(owner any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.owners[owner]
	if ch == nil {
		return
	}
	for len(ch.pending) > 0 {
		next := ch.pending[0]
		ch.pending[0] = nil
		ch.pending = ch.pending[1:]
		if !next.isPending() {
			s.releaseLocked(1)
			continue
		}
		ch.active = next
		s.pushLocked(func() { s.runTask(next) }, false)
		return
	}
	delete(s.owners, owner)
}

func (s *Scheduler) worker() {
	defer s.workers.Done()
	for {
		j := s.next()
		if j == nil {
			return
		}
		j()
		s.mu.Lock()
		s.releaseLocked(1)
		s.mu.Unlock()
	}
}

func (s *Scheduler) next() job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 {
		if s.state == stateClosed {
			return nil
		}
		s.wake.Wait()
	}
	j := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return j
}

// pushLocked appends j to the pool queue. track is false for owned tasks, which are
// counted once when accepted.
func (s *Scheduler) pushLocked(j job, track bool) {
	if track {
		s.inflight++
	}
	s.queue = append(s.queue, j)
	s.wake.Signal()
}

func (s *Scheduler) releaseLocked(n int) {
	if n == 0 {
		return
	}
	s.inflight -= n
	if s.inflight == 0 && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
}

func (s *Scheduler) acceptErrLocked() error {
	switch s.state {
	case stateStopping:
		return ErrStopping
	case stateClosed:
		return ErrClosed
	default:
		return nil
	}
}

// StopSession cancels all outstanding timers and conditional waits, then waits until
// queued and running work has drained or ctx is done. New submissions are rejected with
// ErrStopping and failures are swallowed until it returns. The scheduler accepts work
// again afterwards.
func (s *Scheduler) StopSession(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return ErrClosed
	case stateStopping:
		s.mu.Unlock()
		return ErrStopping
	}
	s.state = stateStopping
	s.quiet.Store(true)
	timers := s.takeTimersLocked()
	s.mu.Unlock()

	for _, t := range timers {
		t.Cancel()
	}
	err := s.waitIdle(ctx)

	s.mu.Lock()
	if s.state == stateStopping {
		s.state = stateOpen
	}
	s.quiet.Store(false)
	s.mu.Unlock()
	return err
}

// Shutdown stops accepting work, cancels timers and waits for accepted work and the
// workers to finish. If ctx is done first, the task context is canceled and ctx.Err()
// is returned. Shutdown is idempotent.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	var timers []*task
	if s.state != stateClosed {
		s.state = stateClosed
		timers = s.takeTimersLocked()
		s.wake.Broadcast()
	}
	s.mu.Unlock()

	for _, t := range timers {
		t.Cancel()
	}

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Scheduler) waitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.inflight == 0 {
			s.mu.Unlock()
			return nil
		}
		if s.idle == nil {
			s.idle = make(chan struct{})
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Workers:  s.cfg.workers,
		Queued:   len(s.queue),
		Owners:   len(s.owners),
		Timers:   len(s.timers),
		Stopping: s.state == stateStopping,
		Closed:   s.state == stateClosed,
	}
	for _, ch := range s.owners {
		st.Queued += len(ch.pending)
	}
	s.mu.Unlock()

	st.Running = int(s.stats.running.Load())
	st.Submitted = s.stats.submitted.Load()
	st.Completed = s.stats.completed.Load()
	st.Failed = s.stats.failed.Load()
	st.Panicked = s.stats.panicked.Load()
	st.Canceled = s.stats.canceled.Load()
	st.Rejected = s.stats.rejected.Load()

	s.stats.lastMu.Lock()
	st.LastError = s.stats.lastErr
	st.LastErrorTime = s.stats.lastErrTime
	s.stats.lastMu.Unlock()
	return st
}

func (c *counters) recordFailure(err error, now time.Time) {
	c.lastMu.Lock()
	c.lastErr = err.Error()
	c.lastErrTime = now
	c.lastMu.Unlock()
}
