package sched

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/evan-idocoding/framekit/rt/clock"
	"github.com/evan-idocoding/framekit/rt/safego"
)

const defaultPollInterval = 5 * time.Millisecond

type config struct {
	workers      int
	pollInterval time.Duration
	logger       *slog.Logger
	clock        clock.Clock

	onError safego.ErrorHandler
	onPanic safego.PanicHandler
}

// Option configures a Scheduler.
type Option func(*config)

func defaultConfig() config {
	return config{
		workers:      runtime.GOMAXPROCS(0),
		pollInterval: defaultPollInterval,
	}
}

// WithWorkers sets the number of pool workers. If n <= 0, New panics.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithPollInterval sets the delay between ScheduleWhen condition checks.
// Zero re-submits a check immediately. Negative values panic in New.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) { c.pollInterval = d }
}

// WithLogger sets the logger used to report failed runs. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithClock sets the time source for timers and polling. Default is clock.Real().
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithErrorHandler overrides logging of run errors.
func WithErrorHandler(h safego.ErrorHandler) Option {
	return func(c *config) { c.onError = h }
}

// WithPanicHandler overrides logging of run panics.
func WithPanicHandler(h safego.PanicHandler) Option {
	return func(c *config) { c.onPanic = h }
}

type taskConfig struct {
	name string
	attrs []slog.Attr
}

// TaskOption configures a single submission.
type TaskOption func(*taskConfig)

// WithName sets a name carried by failure reports and Handle.Name.
func WithName(name string) TaskOption {
	return func(c *taskConfig) { c.name = name }
}

// WithAttrs appends attributes to failure reports.
func WithAttrs(attrs ...slog.Attr) TaskOption {
	return func(c *taskConfig) { c.attrs = append(c.attrs, attrs...) }
}

func applyTaskOptions(opts []TaskOption) taskConfig {
	var c taskConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
