package safego

import "log/slog"

type config struct {
	id    string
	name  string
	attrs []slog.Attr

	logger   *slog.Logger
	suppress func() bool

	onError       ErrorHandler
	onPanic       PanicHandler
	reportCancels bool
}

// Option configures one run.
type Option func(*config)

// WithID sets the identifier reported with failures, typically a task handle ID.
func WithID(id string) Option {
	return func(c *config) { c.id = id }
}

func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithAttrs appends attributes to failure reports.
func WithAttrs(attrs ...slog.Attr) Option {
	return func(c *config) { c.attrs = append(c.attrs, attrs...) }
}

// WithLogger sets the logger used when no handler is set.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithSuppress silences reporting while fn returns true.
func WithSuppress(fn func() bool) Option {
	return func(c *config) { c.suppress = fn }
}

// WithErrorHandler replaces error logging. Panics in h are contained.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) { c.onError = h }
}

// WithPanicHandler replaces panic logging. Panics in h are contained.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) { c.onPanic = h }
}

// WithReportContextCancel controls whether context.Canceled and
// context.DeadlineExceeded are reported. Default is false.
func WithReportContextCancel(report bool) Option {
	return func(c *config) { c.reportCancels = report }
}
