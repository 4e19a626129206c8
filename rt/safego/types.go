package safego

import (
	"context"
	"log/slog"
)

// ErrorHandler receives a run's returned error.
type ErrorHandler func(ctx context.Context, info ErrorInfo)

// ErrorInfo describes a failed run.
type ErrorInfo struct {
	ID    string
	Name  string
	Attrs []slog.Attr
	Err   error
}

// PanicHandler receives a run's recovered panic.
type PanicHandler func(ctx context.Context, info PanicInfo)

// PanicInfo describes a panicked run.
type PanicInfo struct {
	ID    string
	Name  string
	Attrs []slog.Attr
	Value any
	Stack []byte
}

// Result is the outcome of a run.
type Result struct {
	// Err is the error returned by the function, unfiltered.
	Err error
	// Panicked is true when the function panicked.
	Panicked   bool
	PanicValue any
	// Reported is true when the failure reached a handler or the logger.
	Reported bool
}

// Failed reports whether the run returned an error or panicked.
func (r Result) Failed() bool { return r.Err != nil || r.Panicked }
