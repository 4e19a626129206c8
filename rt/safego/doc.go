// Package safego runs scheduler work with panic and error isolation.
//
// Every task body and every ScheduleWhen condition executed by rt/sched goes through
// RunErr or Run. A returned error or a recovered panic is reported and never reaches
// the worker; the caller gets a Result and settles the task handle from it.
//
// Reports go to the handler set with WithErrorHandler or WithPanicHandler. Without a
// handler they are logged at Error level on the WithLogger logger (slog.Default()
// when unset), with the run's id, name and attributes.
//
// Context cancellation errors are not reported unless WithReportContextCancel(true)
// is set. WithSuppress installs a predicate evaluated at report time; while it
// returns true failures only show up in the Result.
package safego
