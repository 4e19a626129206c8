// Package sched provides a bounded background worker pool with owner-scoped ordering.
//
// # Design highlights
//
//   - Scheduler: a fixed set of workers draining an unbounded FIFO run queue.
//   - Submit: fire-and-forget; no ordering relative to other submissions.
//   - SubmitOwned: tasks sharing an owner run strictly one at a time, in submission order.
//     cancelPending=true discards that owner's not-yet-started tasks.
//   - ScheduleDelayed / SchedulePeriodic: one-shot and fixed-rate timers, tracked so
//     StopSession can cancel all of them at once.
//   - ScheduleWhen: re-checks a condition by re-submission until it holds, then runs once.
//   - Failures: errors and panics are recovered by safego and logged; they never reach
//     the caller and never stop an owner chain.
//
// # Lifecycle
//
// New starts the workers immediately:
//
//	s := sched.New(sched.WithWorkers(4), sched.WithLogger(logger))
//	defer s.Shutdown(context.Background())
//
//	s.SubmitOwned(registry, func(ctx context.Context) error {
//		return registry.apply(ctx, batch)
//	}, false)
//
// StopSession cancels every outstanding timer and poller, then waits for queued and
// running work to drain. While it waits the scheduler is stopping: new work is rejected
// (handles settle with ErrStopping) and failures are swallowed without logging. When the
// drain completes the scheduler accepts work again, ready for the next session.
//
// Shutdown is permanent and idempotent. Already accepted work drains first; new work is
// rejected with ErrClosed.
//
// # Owner chains
//
// An owner is any comparable value. The first task of an idle owner is queued on the
// pool right away; later ones wait in the owner's FIFO. When a task settles (success,
// error, panic or cancel) a continuation queues the next live entry. At most one task
// per owner is queued or running at any time, regardless of how many workers are idle.
//
// # ScheduleWhen
//
// ScheduleWhen busy-polls: each check is a pool task and a false result re-submits the
// check after the poll interval (WithPollInterval, default 5ms; 0 re-submits at once).
// Every pending condition costs a worker slot per check, so it is unsuitable for
// polling many conditions at high frequency.
//
// # Periodic runs
//
// SchedulePeriodic is fixed-rate: ticks are aligned to the first run time plus a
// multiple of the period. Missed ticks are not caught up, and a tick that arrives while
// the previous run is still in flight is skipped. Run failures are logged and do not
// cancel the schedule.
package sched
