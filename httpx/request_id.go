package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// DefaultRequestIDHeader is the header read and echoed by RequestID.
const DefaultRequestIDHeader = "X-Request-ID"

const maxIncomingRequestIDLen = 128

// RequestIDOption configures the RequestID middleware.
type RequestIDOption func(*requestIDConfig)

type requestIDConfig struct {
	header        string
	trustIncoming bool
	gen           func() string
}

// WithRequestIDHeader sets the header name. Blank names are ignored.
func WithRequestIDHeader(name string) RequestIDOption {
	return func(c *requestIDConfig) {
		if name != "" {
			c.header = name
		}
	}
}

// WithTrustIncoming controls whether a valid incoming id is reused. Default true.
func WithTrustIncoming(v bool) RequestIDOption {
	return func(c *requestIDConfig) { c.trustIncoming = v }
}

// WithGenerator replaces the id generator. Generated ids that fail validation are
// replaced by a random UUID.
func WithGenerator(fn func() string) RequestIDOption {
	return func(c *requestIDConfig) { c.gen = fn }
}

// RequestID stores a request id in the request context and sets it on the response.
//
// A single incoming header value is reused when it is at most 128 bytes of
// [A-Za-z0-9._-]; otherwise a random UUID is generated.
func RequestID(opts ...RequestIDOption) Middleware {
	cfg := requestIDConfig{header: DefaultRequestIDHeader, trustIncoming: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(next http.Handler) http.Handler {
		if next == nil {
			panic("httpx: nil next handler")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cfg.trustIncoming {
				if vs := r.Header.Values(cfg.header); len(vs) == 1 && validRequestID(vs[0]) {
					id = vs[0]
				}
			}
			if id == "" && cfg.gen != nil {
				if s := cfg.gen(); validRequestID(s) {
					id = s
				}
			}
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(cfg.header, id)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
		})
	}
}

type requestIDKey struct{}

// WithRequestID returns a context carrying id. An empty id returns ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext extracts the request id from ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok && v != ""
}

// RequestIDFromRequest extracts the request id from r.Context().
func RequestIDFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return RequestIDFromContext(r.Context())
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxIncomingRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		case b == '.' || b == '_' || b == '-':
		default:
			return false
		}
	}
	return true
}
