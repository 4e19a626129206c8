// Package admin assembles the frame mirror's operational endpoints into one
// http.Handler subtree.
//
// Mount it anywhere in your own server:
//
//	mux := http.NewServeMux()
//	mux.Handle("/-/", http.StripPrefix("/-", admin.New(...)))
//
// # Explicit enable + explicit guard
//
// Nothing is mounted unless enabled with an EnableXxx option, and every capability
// needs a non-nil Guard. Assembly errors (nil guard, nil dependency, invalid or
// duplicated path) panic.
//
// # Default paths
//
// Read endpoints (GET/HEAD):
//   - EnableReport:           "/report"
//   - EnableHealthz:          "/healthz"
//   - EnableReadyz:           "/readyz"
//   - EnableSchedulerStats:   "/scheduler/stats"
//   - EnableFramesSnapshot:   "/frames/snapshot"  (?root=)
//   - EnableFrameLookup:      "/frames/lookup"    (?path= | ?unique=)
//   - EnableFramesStream:     "/frames/stream"    (websocket)
//   - EnableLogLevelGet:      "/log/level"
//   - EnableTuningSnapshot:   "/tuning/snapshot"  (?key=)
//
// Write endpoints (POST):
//   - EnableSessionStop:      "/session/stop"     (?timeout=)
//   - EnableLogLevelSet:      "/log/level/set"    (?level=)
//   - EnableTuningSet:        "/tuning/set"       (?key=&value=)
//   - EnableTuningReset:      "/tuning/reset"     (?key=)
//
// Tuning writes need a non-empty TuningAccessSpec; an empty one denies every key.
//
// # Guards
//
// AllowAll, DenyAll, Tokens (a static token list read from a header) and Check (a
// custom predicate). Denied requests get 403.
//
// # Report
//
// /report renders every enabled read capability as one indented text page. It is
// guarded by its own Guard.
package admin
