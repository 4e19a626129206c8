// Package framekit assembles a frame tree mirror runtime: a task scheduler, a
// FrameTreeMirror fed by producer announcements, runtime tuning, structured logging
// and an optional admin HTTP server.
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return err
//	}
//	rt := framekit.New(framekit.Spec{Config: cfg})
//	g := framesim.New(cfg.Mirror.RootName)
//	g.OnAnnounce(func(batch []frame.Source) { rt.Announce(batch) })
//	return rt.Run(ctx)
//
// # Tuning
//
// New registers these keys on Runtime.Tuning:
//   - mirror.retry.min_backoff, mirror.retry.max_backoff: read on every retry
//   - mirror.retry.max_attempts: retry budget for under-construction batches
//   - mirror.tick_interval: headless refresh of variable frames; 0 disables it
//   - log.level: bound to Runtime.LogLevelVar
//
// # Sessions
//
// StopSession cancels outstanding timers, drains queued work with failures swallowed,
// resets the mirror to a root-only tree and assigns a new session ID. The runtime
// keeps running. Shutdown ends it for good and is idempotent.
//
// # Admin
//
// Runtime.AdminHandler mounts every read endpoint from package admin. Write endpoints
// (session stop, log level, tuning, placeholder creation) need Config.Admin.Writes.
// When Config.Admin.Tokens is set, every request must carry one in X-Admin-Token.
package framekit
