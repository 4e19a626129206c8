package safego

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Run executes fn with panic isolation.
func Run(ctx context.Context, fn func(context.Context), opts ...Option) Result {
	return RunErr(ctx, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, opts...)
}

// RunErr executes fn synchronously. A returned error or a panic is reported and
// described by the Result; neither propagates. A nil ctx means context.Background().
func RunErr(ctx context.Context, fn func(context.Context) error, opts ...Option) (res Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	var c config
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	defer func() {
		p := recover()
		if p == nil {
			return
		}
		res.Panicked = true
		res.PanicValue = p
		if c.suppressed() {
			return
		}
		c.reportPanic(ctx, PanicInfo{
			ID:    c.id,
			Name:  c.name,
			Attrs: c.attrs,
			Value: p,
			Stack: debug.Stack(),
		})
		res.Reported = true
	}()

	res.Err = fn(ctx)
	if res.Err == nil || c.suppressed() {
		return res
	}
	if !c.reportCancels && IsContextCancel(res.Err) {
		return res
	}
	c.reportError(ctx, ErrorInfo{ID: c.id, Name: c.name, Attrs: c.attrs, Err: res.Err})
	res.Reported = true
	return res
}

// IsContextCancel reports whether err is a context cancellation or deadline error.
func IsContextCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *config) suppressed() bool {
	return c.suppress != nil && c.suppress()
}

func (c *config) reportError(ctx context.Context, info ErrorInfo) {
	if c.onError == nil {
		c.log(ctx, "task failed", info.ID, info.Name, info.Attrs, slog.Any("err", info.Err))
		return
	}
	defer c.containHandlerPanic(ctx, "error handler")
	c.onError(ctx, info)
}

func (c *config) reportPanic(ctx context.Context, info PanicInfo) {
	if c.onPanic == nil {
		c.logPanic(ctx, info)
		return
	}
	defer c.containHandlerPanic(ctx, "panic handler")
	c.onPanic(ctx, info)
}

func (c *config) containHandlerPanic(ctx context.Context, which string) {
	if p := recover(); p != nil {
		c.logPanic(ctx, PanicInfo{
			ID:    c.id,
			Name:  c.name,
			Attrs: c.attrs,
			Value: fmt.Sprintf("safego: %s panicked: %v", which, p),
			Stack: debug.Stack(),
		})
	}
}
