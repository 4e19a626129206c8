package sched

import "errors"

var (
	// ErrClosed is the error of handles rejected after Shutdown.
	ErrClosed = errors.New("sched: scheduler closed")
	// ErrStopping is the error of handles rejected while StopSession is draining.
	ErrStopping = errors.New("sched: session stopping")
	// ErrCanceled is the error of handles canceled before they started.
	ErrCanceled = errors.New("sched: task canceled")
	// ErrPanicked wraps the value of a recovered panic.
	ErrPanicked = errors.New("sched: task panicked")
)
