package ops

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evan-idocoding/framekit/rt/sched"
)

type schedulerConfig struct {
	format Format
}

// SchedulerOption configures scheduler handlers.
type SchedulerOption func(*schedulerConfig)

// WithSchedulerDefaultFormat sets the default response format for scheduler handlers.
// ?format=json|text overrides it per request. Default is FormatText.
func WithSchedulerDefaultFormat(f Format) SchedulerOption {
	return func(c *schedulerConfig) { c.format = f }
}

func applySchedulerOptions(opts []SchedulerOption) schedulerConfig {
	cfg := schedulerConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.format = textOnly(cfg.format)
	return cfg
}

type schedulerStatsResponse struct {
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
	Scheduler sched.Stats `json:"scheduler"`
}

// SchedulerStatsHandler returns a handler that outputs sched.Stats.
//
// GET/HEAD only. Text output is one "scheduler\t<field>\t<value>" line per field.
func SchedulerStatsHandler(s *sched.Scheduler, opts ...SchedulerOption) http.Handler {
	if s == nil {
		panic("ops: nil sched.Scheduler")
	}
	cfg := applySchedulerOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		st := s.Stats()
		if writeStructured(w, r, format, http.StatusOK, schedulerStatsResponse{OK: true, Scheduler: st}) {
			return
		}
		writeTextHeader(w, http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(renderSchedulerStatsText(st)))
		}
	})
}

func renderSchedulerStatsText(st sched.Stats) string {
	var b strings.Builder
	b.Grow(256)
	line := func(field, value string) { textLine(&b, "scheduler", field, value) }
	line("workers", strconv.Itoa(st.Workers))
	line("queued", strconv.Itoa(st.Queued))
	line("running", strconv.Itoa(st.Running))
	line("owners", strconv.Itoa(st.Owners))
	line("timers", strconv.Itoa(st.Timers))
	line("submitted", strconv.FormatUint(st.Submitted, 10))
	line("completed", strconv.FormatUint(st.Completed, 10))
	line("failed", strconv.FormatUint(st.Failed, 10))
	line("panicked", strconv.FormatUint(st.Panicked, 10))
	line("canceled", strconv.FormatUint(st.Canceled, 10))
	line("rejected", strconv.FormatUint(st.Rejected, 10))
	line("stopping", strconv.FormatBool(st.Stopping))
	line("closed", strconv.FormatBool(st.Closed))
	if st.LastError != "" {
		line("last_error", escapeTextField(st.LastError))
		line("last_error_time", st.LastErrorTime.Format(time.RFC3339Nano))
	}
	return b.String()
}

type sessionStopResponse struct {
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// SessionStopHandler returns a handler that ends the current session through stop
// (typically Runtime.StopSession) and waits for it.
//
// Input:
//   - POST only
//   - URL query: ?timeout=<go duration> (optional, positive)
//
// Output: 200 on success, 408 on timeout, 409 while another stop is in progress,
// 503 once the scheduler is closed.
func SessionStopHandler(stop func(context.Context) error, opts ...SchedulerOption) http.Handler {
	if stop == nil {
		panic("ops: nil stop func")
	}
	cfg := applySchedulerOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, format, "POST")
			return
		}

		ctx := r.Context()
		if raw, has := getQueryRaw(r, "timeout"); has {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				writeError(w, r, format, http.StatusBadRequest, "invalid timeout")
				return
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		start := time.Now()
		err := stop(ctx)
		resp := sessionStopResponse{OK: err == nil, Duration: time.Since(start)}
		code := http.StatusOK
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			code = http.StatusRequestTimeout
			resp.TimedOut = true
		case errors.Is(err, sched.ErrStopping):
			code = http.StatusConflict
		case errors.Is(err, sched.ErrClosed):
			code = http.StatusServiceUnavailable
		default:
			code = http.StatusInternalServerError
		}
		if err != nil {
			resp.Error = err.Error()
		}
		if writeStructured(w, r, format, code, resp) {
			return
		}
		writeTextHeader(w, code)
		if err != nil {
			writeTextError(w, escapeTextField(resp.Error))
			return
		}
		var b strings.Builder
		textLine(&b, "session", "stopped", resp.Duration.String())
		_, _ = w.Write([]byte(b.String()))
	})
}
