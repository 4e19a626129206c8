package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/rt/sched"
)

type healthConfig struct {
	format Format
}

// HealthOption configures HealthzHandler / ReadyzHandler.
type HealthOption func(*healthConfig)

// WithHealthDefaultFormat sets the default response format for health handlers.
// ?format=json|text overrides it per request. Default is FormatText.
func WithHealthDefaultFormat(f Format) HealthOption {
	return func(c *healthConfig) { c.format = f }
}

func applyHealthOptions(opts []HealthOption) healthConfig {
	cfg := healthConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.format = textOnly(cfg.format)
	return cfg
}

// HealthzHandler returns a liveness handler. It always responds 200 OK for GET/HEAD.
func HealthzHandler(opts ...HealthOption) http.Handler {
	cfg := applyHealthOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		if writeStructured(w, r, format, http.StatusOK, errorResponse{OK: true}) {
			return
		}
		writeTextHeader(w, http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte("ok\n"))
		}
	})
}

// ReadyCheckFunc returns nil when healthy. It must respect ctx cancellation.
type ReadyCheckFunc func(context.Context) error

// ReadyCheck is a named readiness check.
type ReadyCheck struct {
	Name    string
	Func    ReadyCheckFunc
	Timeout time.Duration // <= 0 means no extra timeout
}

// ReadyCheckResult is a single check execution result.
type ReadyCheckResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// ReadyzReport is a point-in-time readiness execution report.
type ReadyzReport struct {
	OK       bool               `json:"ok"`
	Duration time.Duration      `json:"duration"`
	Checks   []ReadyCheckResult `json:"checks,omitempty"`
}

// SchedulerReady fails once the scheduler is stopping or closed.
func SchedulerReady(s *sched.Scheduler) ReadyCheck {
	if s == nil {
		panic("ops: nil sched.Scheduler")
	}
	return ReadyCheck{Name: "scheduler", Func: func(context.Context) error {
		st := s.Stats()
		switch {
		case st.Closed:
			return sched.ErrClosed
		case st.Stopping:
			return sched.ErrStopping
		}
		return nil
	}}
}

// MirrorReady fails while the mirror root is not defined.
func MirrorReady(m *frame.Mirror) ReadyCheck {
	if m == nil {
		panic("ops: nil frame.Mirror")
	}
	return ReadyCheck{Name: "mirror", Func: func(context.Context) error {
		if !m.Root().IsDefined() {
			return errors.New("mirror root not defined")
		}
		return nil
	}}
}

// ReadyzHandler returns a readiness handler that runs checks sequentially. It
// responds 200 when all pass and 503 otherwise.
func ReadyzHandler(checks []ReadyCheck, opts ...HealthOption) http.Handler {
	for i, c := range checks {
		if c.Name == "" {
			panic(fmt.Sprintf("ops: ready check[%d] has empty Name", i))
		}
		if c.Func == nil {
			panic(fmt.Sprintf("ops: ready check[%d] %q has nil Func", i, c.Name))
		}
	}
	cfg := applyHealthOptions(opts)
	snapshot := append([]ReadyCheck(nil), checks...)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}

		rep := RunReadyzChecks(r.Context(), snapshot)
		code := http.StatusOK
		if !rep.OK {
			code = http.StatusServiceUnavailable
		}
		if writeStructured(w, r, format, code, rep) {
			return
		}
		writeTextHeader(w, code)
		if r.Method == http.MethodHead {
			return
		}
		if rep.OK {
			_, _ = w.Write([]byte("ok\n"))
			return
		}
		for _, c := range rep.Checks {
			if c.OK {
				continue
			}
			_, _ = w.Write([]byte("fail " + c.Name + ": " + escapeTextField(c.Error) + "\n"))
		}
	})
}

// RunReadyzChecks executes checks sequentially and returns a report.
func RunReadyzChecks(ctx context.Context, checks []ReadyCheck) ReadyzReport {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	out := ReadyzReport{OK: true, Checks: make([]ReadyCheckResult, 0, len(checks))}
	for _, c := range checks {
		cr := runOneCheck(ctx, c)
		out.Checks = append(out.Checks, cr)
		out.OK = out.OK && cr.OK
	}
	out.Duration = time.Since(start)
	return out
}

func runOneCheck(parent context.Context, c ReadyCheck) (cr ReadyCheckResult) {
	cr.Name = c.Name
	start := time.Now()
	ctx, cancel := parent, context.CancelFunc(func() {})
	if c.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, c.Timeout)
	}
	defer cancel()

	defer func() {
		cr.Duration = time.Since(start)
		if p := recover(); p != nil {
			cr.OK = false
			cr.Error = fmt.Sprintf("panic: %v", p)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cr.TimedOut = true
			cr.OK = false
			if cr.Error == "" {
				cr.Error = "timeout"
			}
		}
	}()

	if err := c.Func(ctx); err != nil {
		cr.Error = err.Error()
		return cr
	}
	cr.OK = true
	return cr
}
