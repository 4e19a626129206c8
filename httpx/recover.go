package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// LogOption configures the logging middlewares.
type LogOption func(*logConfig)

type logConfig struct {
	logger *slog.Logger
	level  slog.Level
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) LogOption {
	return func(c *logConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLevel sets the record level for AccessLog. Default is slog.LevelDebug.
func WithLevel(l slog.Level) LogOption {
	return func(c *logConfig) { c.level = l }
}

func applyLogOptions(opts []LogOption) logConfig {
	cfg := logConfig{level: slog.LevelDebug}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// Recover recovers panics from downstream handlers and logs them at Error with the
// stack. It writes 500 if the response has not started and re-panics
// http.ErrAbortHandler.
func Recover(opts ...LogOption) Middleware {
	cfg := applyLogOptions(opts)
	return func(next http.Handler) http.Handler {
		if next == nil {
			panic("httpx: nil next handler")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := wrapWriter(w)
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				attrs := []any{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				}
				if id, ok := RequestIDFromRequest(r); ok {
					attrs = append(attrs, slog.String("request_id", id))
				}
				cfg.logger.ErrorContext(r.Context(), "http handler panicked", attrs...)
				if !sw.started() {
					http.Error(sw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
