package sched

import (
	"context"
	"fmt"
	"time"
)

// Func is the unit of work executed by the scheduler.
//
// The context is canceled once Shutdown gives up waiting for in-flight work.
type Func func(context.Context) error

// TaskState is the lifecycle state of a handle.
type TaskState int32

const (
	// TaskPending: accepted, not started. Periodic and conditional handles stay
	// pending for as long as they are scheduled.
	TaskPending TaskState = iota
	TaskRunning
	TaskDone
	TaskFailed
	TaskCanceled
	// TaskRejected: never accepted (scheduler stopping or closed).
	TaskRejected
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	case TaskFailed:
		return "failed"
	case TaskCanceled:
		return "canceled"
	case TaskRejected:
		return "rejected"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// Terminal reports whether s is a final state.
func (s TaskState) Terminal() bool { return s >= TaskDone }

// Handle refers to submitted or scheduled work.
type Handle interface {
	// ID is a unique identifier (UUID) for logs and ops output.
	ID() string

	// Name returns the configured name (may be empty).
	Name() string

	// Owner returns the owner token for SubmitOwned handles, nil otherwise.
	Owner() any

	// Cancel discards the work if it has not started. For periodic and conditional
	// handles it stops all future runs. It reports whether this call canceled it.
	Cancel() bool

	// Done is closed once the handle reaches a terminal state.
	Done() <-chan struct{}

	// Wait blocks until Done or ctx is done, and returns Err or ctx.Err().
	Wait(ctx context.Context) error

	// State returns the current state.
	State() TaskState

	// Err returns the settled error: the task's error, an ErrPanicked wrap,
	// ErrCanceled, ErrStopping or ErrClosed. Nil while not terminal or on success.
	Err() error
}

// Stats is a point-in-time view of a Scheduler.
type Stats struct {
	Workers int `json:"workers"`
	// Queued counts work waiting for a worker, including owner FIFO entries.
	Queued  int `json:"queued"`
	Running int `json:"running"`
	// Owners counts owners with a queued or running task.
	Owners int `json:"owners"`
	// Timers counts outstanding delayed, periodic and conditional handles.
	Timers int `json:"timers"`

	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Panicked  uint64 `json:"panicked"`
	Canceled  uint64 `json:"canceled"`
	Rejected  uint64 `json:"rejected"`

	// LastError is the most recent run failure. It is not cleared on success.
	LastError     string    `json:"last_error,omitempty"`
	LastErrorTime time.Time `json:"last_error_time,omitempty"`

	Stopping bool `json:"stopping"`
	Closed   bool `json:"closed"`
}
