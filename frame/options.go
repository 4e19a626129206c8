package frame

import (
	"log/slog"
	"time"
)

const (
	defaultRootName    = "world"
	defaultMaxRetries  = 40
	defaultRetryMin    = 100 * time.Millisecond
	defaultRetryMax    = 500 * time.Millisecond
	defaultTransient   = "_transient"
	defaultWatchBuffer = 1
)

// Backoff returns the delay before retry number attempt (starting at 0).
type Backoff func(attempt int) time.Duration

// ExpBackoff doubles min per attempt and caps it at max.
func ExpBackoff(min, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := min
		for i := 0; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
		return d
	}
}

type config struct {
	rootName   string
	transient  []string
	maxRetries int
	budget     func() int
	backoff    Backoff
	logger     *slog.Logger
}

// Option configures a Mirror.
type Option func(*config)

func defaultConfig() config {
	return config{
		rootName:   defaultRootName,
		transient:  []string{defaultTransient},
		maxRetries: defaultMaxRetries,
		backoff:    ExpBackoff(defaultRetryMin, defaultRetryMax),
	}
}

// WithRootName sets the path of the mirror root. Default is "world".
func WithRootName(name string) Option {
	return func(c *config) { c.rootName = name }
}

// WithTransientSuffixes replaces the name suffixes that mark producer-internal frames.
// Default is "_transient". No arguments disables the filter.
func WithTransientSuffixes(suffixes ...string) Option {
	return func(c *config) { c.transient = append([]string(nil), suffixes...) }
}

// WithMaxRetries bounds how many times an under-construction batch is retried.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithRetryBudget reads the retry bound from fn at every retry decision, so it can
// change while the mirror runs. It overrides WithMaxRetries; negative results count
// as 0.
func WithRetryBudget(fn func() int) Option {
	return func(c *config) { c.budget = fn }
}

// WithRetryBackoff sets the retry delay policy. Default is ExpBackoff(100ms, 500ms).
func WithRetryBackoff(b Backoff) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithLogger sets the logger for dropped frames and retries. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
