package framekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evan-idocoding/framekit/config"
	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/rt/sched"
	"github.com/evan-idocoding/framekit/rt/tuning"
	"github.com/evan-idocoding/framekit/rt/tuning/tuningslog"
)

var (
	ErrAlreadyStarted = errors.New("framekit: runtime already started")
	ErrNotStarted     = errors.New("framekit: runtime not started")
)

// Tuning keys registered by New.
const (
	KeyRetryMinBackoff  = "mirror.retry.min_backoff"
	KeyRetryMaxBackoff  = "mirror.retry.max_backoff"
	KeyRetryMaxAttempts = "mirror.retry.max_attempts"
	KeyTickInterval     = "mirror.tick_interval"
	KeyLogLevel         = "log.level"
)

const defaultShutdownTimeout = 30 * time.Second

// Spec configures New.
type Spec struct {
	// Config is the loaded configuration. nil means config.Default().
	Config *config.Config

	// LogOutput receives log records. Default is os.Stderr.
	LogOutput io.Writer

	// Signals controls which signals end Run.
	Signals SignalSpec

	// ShutdownTimeout bounds Shutdown when triggered by Run. Default is 30s.
	ShutdownTimeout time.Duration
}

// SignalSpec controls signal handling in Run.
type SignalSpec struct {
	// Disable turns signal handling off.
	Disable bool
	// Signals overrides the defaults (SIGINT, SIGTERM).
	Signals []os.Signal
}

// Runtime owns the scheduler, the mirror, the tuning registry, the logger and the
// optional admin server.
type Runtime struct {
	Config      *config.Config
	Logger      *slog.Logger
	LogLevelVar *slog.LevelVar
	Tuning      *tuning.Tuning
	Scheduler   *sched.Scheduler
	Mirror      *frame.Mirror

	// AdminHandler is always assembled; AdminServer is nil unless Config.Admin.Addr is set.
	AdminHandler http.Handler
	AdminServer  *http.Server

	maxAttempts  *tuning.Var[int64]
	minBackoff   *tuning.Var[time.Duration]
	maxBackoff   *tuning.Var[time.Duration]
	tickInterval *tuning.Var[time.Duration]

	signals         SignalSpec
	shutdownTimeout time.Duration

	mu       sync.Mutex
	started  bool
	stopping bool
	ticking  bool
	tickGen  uint64
	session  string
	listener net.Listener
	serveErr error

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	shutdownErr  error
}

// New assembles a Runtime. The scheduler workers start immediately; the admin server
// and the tick loop start with Start or Run.
//
// Invalid configuration is an assembly error and panics.
func New(spec Spec) *Runtime {
	cfg := spec.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("framekit: %v", err))
	}
	out := spec.LogOutput
	if out == nil {
		out = os.Stderr
	}

	r := &Runtime{
		Config:          cfg,
		Tuning:          tuning.New(),
		signals:         spec.Signals,
		shutdownTimeout: spec.ShutdownTimeout,
		shutdownCh:      make(chan struct{}),
		session:         uuid.NewString(),
	}
	if r.shutdownTimeout <= 0 {
		r.shutdownTimeout = defaultShutdownTimeout
	}

	level, _ := tuningslog.ParseLevel(cfg.Log.Level)
	_, lv, err := tuningslog.LevelVar(r.Tuning, KeyLogLevel, level)
	if err != nil {
		panic(fmt.Sprintf("framekit: %v", err))
	}
	r.LogLevelVar = lv
	hopts := &slog.HandlerOptions{Level: lv}
	if cfg.Log.Format == "json" {
		r.Logger = slog.New(slog.NewJSONHandler(out, hopts))
	} else {
		r.Logger = slog.New(slog.NewTextHandler(out, hopts))
	}

	r.minBackoff = mustVar(r.Tuning.Duration(KeyRetryMinBackoff, cfg.Mirror.Retry.MinBackoff.Std(), tuning.WithMin(time.Millisecond)))
	r.maxBackoff = mustVar(r.Tuning.Duration(KeyRetryMaxBackoff, cfg.Mirror.Retry.MaxBackoff.Std(), tuning.WithMin(time.Millisecond)))
	r.maxAttempts = mustVar(r.Tuning.Int64(KeyRetryMaxAttempts, int64(cfg.Mirror.Retry.MaxAttempts), tuning.WithMin(int64(0))))
	r.tickInterval = mustVar(r.Tuning.Duration(KeyTickInterval, cfg.Mirror.TickInterval.Std(),
		tuning.WithMin(time.Duration(0)),
		tuning.WithOnChange(func(time.Duration) { r.armTicker() }),
	))

	sopts := []sched.Option{
		sched.WithLogger(r.Logger.With("component", "sched")),
		sched.WithPollInterval(cfg.Scheduler.PollInterval.Std()),
	}
	if cfg.Scheduler.Workers > 0 {
		sopts = append(sopts, sched.WithWorkers(cfg.Scheduler.Workers))
	}
	r.Scheduler = sched.New(sopts...)

	r.Mirror = frame.NewMirror(r.Scheduler,
		frame.WithRootName(cfg.Mirror.RootName),
		frame.WithTransientSuffixes(cfg.Mirror.TransientSuffixes...),
		frame.WithRetryBudget(func() int { return int(r.maxAttempts.Get()) }),
		frame.WithRetryBackoff(r.retryBackoff),
		frame.WithLogger(r.Logger.With("component", "frame")),
	)

	r.AdminHandler = r.newAdmin()
	if cfg.Admin.Addr != "" {
		r.AdminServer = &http.Server{
			Addr:              cfg.Admin.Addr,
			Handler:           r.AdminHandler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return r
}

func mustVar[T comparable](v *tuning.Var[T], err error) *tuning.Var[T] {
	if err != nil {
		panic(fmt.Sprintf("framekit: %v", err))
	}
	return v
}

// retryBackoff reads the tuning variables on every retry.
func (r *Runtime) retryBackoff(attempt int) time.Duration {
	return frame.ExpBackoff(r.minBackoff.Get(), r.maxBackoff.Get())(attempt)
}

// SessionID identifies the current session. It changes on every StopSession.
func (r *Runtime) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Announce hands a batch of producer frames to the mirror.
func (r *Runtime) Announce(batch []frame.Source) sched.Handle {
	return r.Mirror.Announce(batch)
}

// Run starts the runtime and blocks until ctx is done, a signal arrives or the admin
// server fails, then shuts down. It is not idempotent.
func (r *Runtime) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	sigCh, stopSignals := r.watchSignals()
	defer stopSignals()

	var cause error
	select {
	case <-ctx.Done():
		cause = ctx.Err()
	case sig := <-sigCh:
		r.Logger.Info("signal received", slog.String("signal", sig.String()))
	case <-r.shutdownCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()
	err := r.Shutdown(sctx)

	r.mu.Lock()
	serveErr := r.serveErr
	r.mu.Unlock()
	if errors.Is(cause, context.Canceled) {
		cause = nil
	}
	return errors.Join(cause, serveErr, err)
}

// Start binds the admin server and arms the tick loop.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	if r.stopping {
		r.mu.Unlock()
		return sched.ErrClosed
	}
	r.started = true
	r.mu.Unlock()

	if r.AdminServer != nil {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", r.AdminServer.Addr)
		if err != nil {
			return fmt.Errorf("framekit: admin listen %q: %w", r.AdminServer.Addr, err)
		}
		r.mu.Lock()
		r.listener = ln
		r.mu.Unlock()
		r.Logger.Info("admin server listening", slog.String("addr", ln.Addr().String()))
		go r.serveAdmin(ln)
	}
	r.armTicker()
	r.Logger.Info("runtime started", slog.String("session", r.SessionID()))
	return nil
}

// AdminAddr returns the bound admin address, or "" if the server is not listening.
func (r *Runtime) AdminAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

func (r *Runtime) serveAdmin(ln net.Listener) {
	err := r.AdminServer.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	r.mu.Lock()
	stopping := r.stopping
	if !stopping {
		r.serveErr = fmt.Errorf("framekit: admin server: %w", err)
	}
	r.mu.Unlock()
	if !stopping {
		r.Logger.Error("admin server failed", slog.Any("error", err))
		r.initiateShutdown()
	}
}

// StopSession ends the current session: timers and conditional waits are canceled,
// queued work drains with failures swallowed, and the mirror returns to a root-only
// tree. A new session ID is assigned.
//
// If ctx ends before the scheduler drains, the mirror is still reset under a fresh
// context bounded by the shutdown timeout and the drain error is returned. The tick
// loop is re-armed on every path.
func (r *Runtime) StopSession(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		r.mu.Lock()
		r.ticking = false
		r.mu.Unlock()
		r.armTicker()
	}()

	stopErr := r.Scheduler.StopSession(ctx)
	if errors.Is(stopErr, sched.ErrClosed) || errors.Is(stopErr, sched.ErrStopping) {
		return stopErr
	}
	resetCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		resetCtx, cancel = context.WithTimeout(context.Background(), r.shutdownTimeout)
		defer cancel()
	}
	if err := r.Mirror.Reset(resetCtx); err != nil {
		return errors.Join(stopErr, fmt.Errorf("framekit: mirror reset: %w", err))
	}

	r.mu.Lock()
	old := r.session
	r.session = uuid.NewString()
	next := r.session
	r.mu.Unlock()

	if stopErr != nil {
		r.Logger.Warn("session stopped before work drained",
			slog.String("session", old), slog.String("next", next), slog.Any("error", stopErr))
		return stopErr
	}
	r.Logger.Info("session stopped", slog.String("session", old), slog.String("next", next))
	return nil
}

// Shutdown stops the admin server and the scheduler. It is idempotent; a second call
// waits for the first one with its own ctx.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.initiateShutdown()
	select {
	case <-r.shutdownCh:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.shutdownErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) initiateShutdown() {
	r.shutdownOnce.Do(func() { go r.doShutdown() })
}

func (r *Runtime) doShutdown() {
	r.mu.Lock()
	r.stopping = true
	ln := r.listener
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	var errs []error
	if r.AdminServer != nil && ln != nil {
		if err := r.AdminServer.Shutdown(ctx); err != nil {
			_ = r.AdminServer.Close()
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
		_ = ln.Close()
	}
	if err := r.Scheduler.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		r.Logger.Error("shutdown incomplete", slog.Any("error", err))
	} else {
		r.Logger.Info("runtime stopped")
	}
	r.mu.Lock()
	r.shutdownErr = err
	r.mu.Unlock()
	close(r.shutdownCh)
}

// armTicker starts the headless refresh loop if the runtime is started, the interval
// is positive and no loop is armed.
func (r *Runtime) armTicker() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopping || r.ticking || r.tickInterval.Get() <= 0 {
		return
	}
	r.ticking = true
	r.tickGen++
	r.scheduleTickLocked(r.tickGen)
}

// scheduleTickLocked queues one tick of loop gen. A loop superseded by a later
// armTicker ends at its next tick.
func (r *Runtime) scheduleTickLocked(gen uint64) {
	r.Scheduler.ScheduleDelayed(func(context.Context) error {
		r.mu.Lock()
		if gen != r.tickGen {
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		r.Mirror.Tick()
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.tickGen {
			return nil
		}
		if r.stopping || r.tickInterval.Get() <= 0 {
			r.ticking = false
			return nil
		}
		r.scheduleTickLocked(gen)
		return nil
	}, r.tickInterval.Get(), sched.WithName("mirror.tick"))
}

func (r *Runtime) watchSignals() (<-chan os.Signal, func()) {
	if r.signals.Disable {
		return nil, func() {}
	}
	sigs := r.signals.Signals
	if len(sigs) == 0 {
		sigs = defaultSignals()
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	return ch, func() { signal.Stop(ch) }
}
