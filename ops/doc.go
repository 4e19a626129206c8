// Package ops provides net/http handlers for the operational surface of a frame mirror.
//
// ops is designed to be mounted into your own routing tree. It intentionally:
//   - does not choose routing paths (mount it anywhere),
//   - does not do authn/authz decisions (protect it with your own middleware),
//   - does not start servers or manage process lifecycle.
//
// # Formats
//
// Handlers render line-based text by default. The default can be configured by options
// and overridden per request by URL query:
//   - ?format=text
//   - ?format=json
//   - ?format=cbor (frame handlers only)
//
// Text lines are tab separated, one record per line, with control characters escaped.
//
// # What ops provides
//
//   - health: HealthzHandler, ReadyzHandler, SchedulerReady, MirrorReady
//   - scheduler: SchedulerStatsHandler, SessionStopHandler (rt/sched integration)
//   - frames: FramesSnapshotHandler, FrameLookupHandler, FramesStreamHandler (websocket)
//   - tuning: TuningSnapshotHandler, TuningSetHandler, TuningResetHandler (rt/tuning integration)
//   - logging: LogLevelGetHandler, LogLevelSetHandler (slog.LevelVar)
//
// # Security notes
//
// Mount write handlers (session stop, tuning set, placeholder creation) behind your own
// authentication. FrameLookupHandler creates placeholders only with
// WithFramesAllowCreate.
package ops
