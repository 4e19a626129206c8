package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/evan-idocoding/framekit/httpx"
)

// New assembles the admin subtree handler. It panics on assembly errors.
func New(opts ...Option) http.Handler {
	b := &Builder{paths: make(map[string]http.Handler)}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b.build()
}

// Option configures admin assembly.
type Option func(*Builder)

// WithLogger sets the logger used for panics and access logs. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// Builder collects capabilities. Users configure it through Options.
type Builder struct {
	logger *slog.Logger
	paths  map[string]http.Handler

	report  *ReportSpec
	reports []reportSource
}

func (b *Builder) build() http.Handler {
	b.assembleReport()

	mux := http.NewServeMux()
	for path, h := range b.paths {
		mux.Handle(path, h)
	}
	return httpx.Chain(
		httpx.RequestID(),
		httpx.Recover(httpx.WithLogger(b.logger)),
		httpx.AccessLog(httpx.WithLogger(b.logger)),
	).Handler(mux)
}

func (b *Builder) mount(name, path string, g Guard, h http.Handler) {
	if g == nil {
		panic("admin: " + name + ": nil Guard")
	}
	path = normalizePathOrPanic(path)
	if _, exists := b.paths[path]; exists {
		panic("admin: duplicated path handler: " + path)
	}
	b.paths[path] = guarded(g, h)
}

// mountRead also lists the capability in /report.
func (b *Builder) mountRead(name, path string, g Guard, h http.Handler) {
	b.mount(name, path, g, h)
	b.reports = append(b.reports, reportSource{name: name, path: normalizePathOrPanic(path), h: h})
}

func resolvePath(specPath, def string) string {
	if strings.TrimSpace(specPath) == "" {
		return def
	}
	return specPath
}

func normalizePathOrPanic(path string) string {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		panic("admin: empty path")
	case !strings.HasPrefix(path, "/"):
		panic("admin: invalid path (must start with '/'): " + path)
	case strings.ContainsAny(path, " \t\r\n?#"):
		panic("admin: invalid path (contains whitespace or ?#): " + path)
	case strings.Contains(path, "//"):
		panic("admin: invalid path (contains //): " + path)
	}
	return path
}
