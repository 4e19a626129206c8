package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Guard enforces request admission for a capability. Implementations must be fast
// and must not block.
type Guard interface {
	// Allow reports whether r may reach the capability.
	Allow(r *http.Request) bool
}

type guardFunc func(r *http.Request) bool

func (g guardFunc) Allow(r *http.Request) bool { return g(r) }

// AllowAll admits every request.
func AllowAll() Guard { return guardFunc(func(*http.Request) bool { return true }) }

// DenyAll rejects every request.
func DenyAll() Guard { return guardFunc(func(*http.Request) bool { return false }) }

// Check returns a guard backed by fn. fn must not do I/O; nil panics.
func Check(fn func(r *http.Request) bool) Guard {
	if fn == nil {
		panic("admin: Check: nil func")
	}
	return guardFunc(fn)
}

// DefaultTokenHeader is the header Tokens reads unless WithTokenHeader overrides it.
const DefaultTokenHeader = "X-Access-Token"

// TokenOption configures Tokens.
type TokenOption func(*tokenConfig)

type tokenConfig struct{ header string }

// WithTokenHeader overrides the token header. Blank names are ignored.
func WithTokenHeader(name string) TokenOption {
	return func(c *tokenConfig) {
		if name = strings.TrimSpace(name); name != "" {
			c.header = name
		}
	}
}

// Tokens admits requests carrying one of tokens in the token header. Blank tokens are
// ignored; with none left it denies everything.
func Tokens(tokens []string, opts ...TokenOption) Guard {
	cfg := tokenConfig{header: DefaultTokenHeader}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	var set [][]byte
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			set = append(set, []byte(t))
		}
	}
	if len(set) == 0 {
		return DenyAll()
	}
	return guardFunc(func(r *http.Request) bool {
		vs := r.Header.Values(cfg.header)
		if len(vs) != 1 || vs[0] == "" {
			return false
		}
		got := []byte(vs[0])
		ok := 0
		for _, t := range set {
			ok |= subtle.ConstantTimeCompare(got, t)
		}
		return ok == 1
	})
}

func guarded(g Guard, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Allow(r) {
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}
