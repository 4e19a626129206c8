package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

// AccessLog logs one record per request with method, path, status, bytes and duration.
func AccessLog(opts ...LogOption) Middleware {
	cfg := applyLogOptions(opts)
	return func(next http.Handler) http.Handler {
		if next == nil {
			panic("httpx: nil next handler")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.logger.Enabled(r.Context(), cfg.level) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			sw := wrapWriter(w)
			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int64("bytes", sw.bytes),
				slog.Duration("duration", time.Since(start)),
			}
			if id, ok := RequestIDFromRequest(r); ok {
				attrs = append(attrs, slog.String("request_id", id))
			}
			cfg.logger.LogAttrs(r.Context(), cfg.level, "http request", attrs...)
		})
	}
}
