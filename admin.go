package framekit

import (
	"net/http"

	"github.com/evan-idocoding/framekit/admin"
	"github.com/evan-idocoding/framekit/ops"
)

// AdminTokenHeader carries the admin token when Config.Admin.Tokens is set.
const AdminTokenHeader = "X-Admin-Token"

// newAdmin mounts every capability at its default path. Writes are mounted only with
// Config.Admin.Writes and are limited to the runtime's own tuning keys.
func (r *Runtime) newAdmin() http.Handler {
	ac := r.Config.Admin
	guard := admin.AllowAll()
	if len(ac.Tokens) > 0 {
		guard = admin.Tokens(ac.Tokens, admin.WithTokenHeader(AdminTokenHeader))
	}

	opts := []admin.Option{
		admin.WithLogger(r.Logger.With("component", "admin")),
		admin.EnableReport(admin.ReportSpec{Guard: guard}),
		admin.EnableHealthz(admin.HealthzSpec{Guard: guard}),
		admin.EnableReadyz(admin.ReadyzSpec{Guard: guard, Checks: []ops.ReadyCheck{
			ops.SchedulerReady(r.Scheduler),
			ops.MirrorReady(r.Mirror),
		}}),
		admin.EnableSchedulerStats(admin.SchedulerStatsSpec{Guard: guard, Scheduler: r.Scheduler}),
		admin.EnableFramesSnapshot(admin.FramesSnapshotSpec{Guard: guard, Mirror: r.Mirror}),
		admin.EnableFrameLookup(admin.FrameLookupSpec{Guard: guard, Mirror: r.Mirror, AllowCreate: ac.Writes}),
		admin.EnableFramesStream(admin.FramesStreamSpec{Guard: guard, Mirror: r.Mirror}),
		admin.EnableLogLevelGet(admin.LogLevelGetSpec{Guard: guard, Var: r.LogLevelVar}),
		admin.EnableTuningSnapshot(admin.TuningSnapshotSpec{Guard: guard, T: r.Tuning}),
	}
	if ac.Writes {
		access := admin.TuningAccessSpec{AllowPrefixes: []string{"mirror.", "log."}}
		opts = append(opts,
			admin.EnableSessionStop(admin.SessionStopSpec{Guard: guard, Stop: r.StopSession}),
			admin.EnableLogLevelSet(admin.LogLevelSetSpec{Guard: guard, Var: r.LogLevelVar, Tuning: r.Tuning, Key: KeyLogLevel}),
			admin.EnableTuningSet(admin.TuningSetSpec{Guard: guard, T: r.Tuning, Access: access}),
			admin.EnableTuningReset(admin.TuningResetSpec{Guard: guard, T: r.Tuning, Access: access}),
		)
	}
	return admin.New(opts...)
}
