package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/ops"
	"github.com/evan-idocoding/framekit/rt/sched"
	"github.com/evan-idocoding/framekit/rt/tuning"
)

// --- report ---

type ReportSpec struct {
	Guard Guard
	Path  string // default "/report"
}

func EnableReport(spec ReportSpec) Option {
	return func(b *Builder) {
		if spec.Guard == nil {
			panic("admin: report: nil Guard")
		}
		if b.report != nil {
			panic("admin: EnableReport called more than once")
		}
		spec.Path = normalizePathOrPanic(resolvePath(spec.Path, "/report"))
		b.report = &spec
	}
}

// --- health ---

type HealthzSpec struct {
	Guard Guard
	Path  string // default "/healthz"
}

func EnableHealthz(spec HealthzSpec) Option {
	return func(b *Builder) {
		b.mount("healthz", resolvePath(spec.Path, "/healthz"), spec.Guard, ops.HealthzHandler())
	}
}

type ReadyzSpec struct {
	Guard  Guard
	Path   string // default "/readyz"
	Checks []ops.ReadyCheck
}

func EnableReadyz(spec ReadyzSpec) Option {
	return func(b *Builder) {
		b.mountRead("readyz", resolvePath(spec.Path, "/readyz"), spec.Guard, ops.ReadyzHandler(spec.Checks))
	}
}

// --- scheduler ---

type SchedulerStatsSpec struct {
	Guard     Guard
	Path      string // default "/scheduler/stats"
	Scheduler *sched.Scheduler
}

func EnableSchedulerStats(spec SchedulerStatsSpec) Option {
	return func(b *Builder) {
		if spec.Scheduler == nil {
			panic("admin: scheduler.stats: nil Scheduler")
		}
		b.mountRead("scheduler", resolvePath(spec.Path, "/scheduler/stats"), spec.Guard, ops.SchedulerStatsHandler(spec.Scheduler))
	}
}

type SessionStopSpec struct {
	Guard Guard
	Path  string // default "/session/stop"
	// Stop ends the current session. framekit.Runtime.StopSession fits.
	Stop func(context.Context) error
}

func EnableSessionStop(spec SessionStopSpec) Option {
	return func(b *Builder) {
		if spec.Stop == nil {
			panic("admin: session.stop: nil Stop")
		}
		b.mount("session.stop", resolvePath(spec.Path, "/session/stop"), spec.Guard, ops.SessionStopHandler(spec.Stop))
	}
}

// --- frames ---

type FramesSnapshotSpec struct {
	Guard  Guard
	Path   string // default "/frames/snapshot"
	Mirror *frame.Mirror
}

func EnableFramesSnapshot(spec FramesSnapshotSpec) Option {
	return func(b *Builder) {
		requireMirror(spec.Mirror, "frames.snapshot")
		b.mountRead("frames", resolvePath(spec.Path, "/frames/snapshot"), spec.Guard, ops.FramesSnapshotHandler(spec.Mirror))
	}
}

type FrameLookupSpec struct {
	Guard  Guard
	Path   string // default "/frames/lookup"
	Mirror *frame.Mirror
	// AllowCreate lets POST ?create=true register placeholders.
	AllowCreate bool
}

func EnableFrameLookup(spec FrameLookupSpec) Option {
	return func(b *Builder) {
		requireMirror(spec.Mirror, "frames.lookup")
		h := ops.FrameLookupHandler(spec.Mirror, ops.WithFramesAllowCreate(spec.AllowCreate))
		b.mount("frames.lookup", resolvePath(spec.Path, "/frames/lookup"), spec.Guard, h)
	}
}

type FramesStreamSpec struct {
	Guard  Guard
	Path   string // default "/frames/stream"
	Mirror *frame.Mirror
	// CheckOrigin overrides the websocket same-origin check.
	CheckOrigin func(*http.Request) bool
}

func EnableFramesStream(spec FramesStreamSpec) Option {
	return func(b *Builder) {
		requireMirror(spec.Mirror, "frames.stream")
		h := ops.FramesStreamHandler(spec.Mirror, ops.WithStreamCheckOrigin(spec.CheckOrigin))
		b.mount("frames.stream", resolvePath(spec.Path, "/frames/stream"), spec.Guard, h)
	}
}

func requireMirror(m *frame.Mirror, capName string) {
	if m == nil {
		panic("admin: " + capName + ": nil Mirror")
	}
}

// --- log level ---

type LogLevelGetSpec struct {
	Guard Guard
	Path  string // default "/log/level"
	Var   *slog.LevelVar
}

func EnableLogLevelGet(spec LogLevelGetSpec) Option {
	return func(b *Builder) {
		if spec.Var == nil {
			panic("admin: log.level.get: nil slog.LevelVar")
		}
		b.mountRead("log.level", resolvePath(spec.Path, "/log/level"), spec.Guard, ops.LogLevelGetHandler(spec.Var))
	}
}

type LogLevelSetSpec struct {
	Guard Guard
	Path  string // default "/log/level/set"
	Var   *slog.LevelVar

	// Tuning and Key, when set, route writes through the tuning variable bound to Var.
	Tuning *tuning.Tuning
	Key    string
}

func EnableLogLevelSet(spec LogLevelSetSpec) Option {
	return func(b *Builder) {
		if spec.Var == nil {
			panic("admin: log.level.set: nil slog.LevelVar")
		}
		var opts []ops.LogLevelOption
		if spec.Tuning != nil {
			if spec.Key == "" {
				panic("admin: log.level.set: Tuning without Key")
			}
			opts = append(opts, ops.WithLogLevelTuning(spec.Tuning, spec.Key))
		}
		b.mount("log.level.set", resolvePath(spec.Path, "/log/level/set"), spec.Guard, ops.LogLevelSetHandler(spec.Var, opts...))
	}
}

// --- tuning ---

// TuningAccessSpec limits the keys a tuning endpoint exposes. AllowFunc conflicts with
// the lists. For reads an empty spec allows every key; for writes it denies every key.
type TuningAccessSpec struct {
	AllowPrefixes []string
	AllowKeys     []string
	AllowFunc     func(key string) bool
}

type TuningSnapshotSpec struct {
	Guard  Guard
	Path   string // default "/tuning/snapshot"
	T      *tuning.Tuning
	Access TuningAccessSpec
}

func EnableTuningSnapshot(spec TuningSnapshotSpec) Option {
	return func(b *Builder) {
		requireTuning(spec.T, "tuning.snapshot")
		var opts []ops.TuningOption
		if fn := tuningAccessFuncOrPanic(spec.Access); fn != nil {
			opts = append(opts, ops.WithTuningKeyGuard(fn))
		}
		b.mountRead("tuning", resolvePath(spec.Path, "/tuning/snapshot"), spec.Guard, ops.TuningSnapshotHandler(spec.T, opts...))
	}
}

type TuningSetSpec struct {
	Guard  Guard
	Path   string // default "/tuning/set"
	T      *tuning.Tuning
	Access TuningAccessSpec
}

func EnableTuningSet(spec TuningSetSpec) Option {
	return func(b *Builder) {
		requireTuning(spec.T, "tuning.set")
		h := ops.TuningSetHandler(spec.T, tuningWriteGuard(spec.Access))
		b.mount("tuning.set", resolvePath(spec.Path, "/tuning/set"), spec.Guard, h)
	}
}

type TuningResetSpec struct {
	Guard  Guard
	Path   string // default "/tuning/reset"
	T      *tuning.Tuning
	Access TuningAccessSpec
}

func EnableTuningReset(spec TuningResetSpec) Option {
	return func(b *Builder) {
		requireTuning(spec.T, "tuning.reset")
		h := ops.TuningResetHandler(spec.T, tuningWriteGuard(spec.Access))
		b.mount("tuning.reset", resolvePath(spec.Path, "/tuning/reset"), spec.Guard, h)
	}
}

func requireTuning(t *tuning.Tuning, capName string) {
	if t == nil {
		panic("admin: " + capName + ": nil tuning.Tuning")
	}
}

func tuningWriteGuard(a TuningAccessSpec) ops.TuningOption {
	fn := tuningAccessFuncOrPanic(a)
	if fn == nil {
		fn = func(string) bool { return false }
	}
	return ops.WithTuningKeyGuard(fn)
}

func tuningAccessFuncOrPanic(a TuningAccessSpec) func(key string) bool {
	if a.AllowFunc != nil {
		if len(a.AllowPrefixes) != 0 || len(a.AllowKeys) != 0 {
			panic("admin: tuning access: AllowFunc conflicts with AllowPrefixes/AllowKeys")
		}
		return a.AllowFunc
	}
	prefixes, prefixesSpecified := trimNonEmpty(a.AllowPrefixes)
	keys, keysSpecified := trimNonEmpty(a.AllowKeys)
	if (prefixesSpecified && len(prefixes) == 0) || (keysSpecified && len(keys) == 0) {
		return func(string) bool { return false }
	}
	if len(prefixes) == 0 && len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return func(key string) bool {
		if _, ok := set[key]; ok {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				return true
			}
		}
		return false
	}
}

func trimNonEmpty(in []string) (out []string, specified bool) {
	if len(in) == 0 {
		return nil, false
	}
	for _, raw := range in {
		if s := strings.TrimSpace(raw); s != "" {
			out = append(out, s)
		}
	}
	return out, true
}
