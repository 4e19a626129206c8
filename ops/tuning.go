package ops

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/evan-idocoding/framekit/rt/tuning"
)

type tuningConfig struct {
	format Format
	guards []func(key string) bool
}

// TuningOption configures tuning handlers.
type TuningOption func(*tuningConfig)

// WithTuningDefaultFormat sets the default response format for tuning handlers.
// ?format=json|text overrides it per request. Default is FormatText.
func WithTuningDefaultFormat(f Format) TuningOption {
	return func(c *tuningConfig) { c.format = f }
}

// WithTuningKeyGuard appends a key guard. Guards are combined with AND and apply to
// reads and writes.
func WithTuningKeyGuard(fn func(key string) bool) TuningOption {
	return func(c *tuningConfig) {
		if fn != nil {
			c.guards = append(c.guards, fn)
		}
	}
}

// WithTuningAllowPrefixes restricts keys to the given prefixes. With no non-empty
// prefix it denies every key.
func WithTuningAllowPrefixes(prefixes ...string) TuningOption {
	var ps []string
	for _, p := range prefixes {
		if p != "" {
			ps = append(ps, p)
		}
	}
	return WithTuningKeyGuard(func(key string) bool {
		for _, p := range ps {
			if strings.HasPrefix(key, p) {
				return true
			}
		}
		return false
	})
}

func applyTuningOptions(opts []TuningOption) tuningConfig {
	cfg := tuningConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.format = textOnly(cfg.format)
	return cfg
}

func (c tuningConfig) allowed(key string) bool {
	for _, g := range c.guards {
		if !g(key) {
			return false
		}
	}
	return true
}

type tuningResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Items []tuning.Item `json:"items,omitempty"`
	Old   *tuning.Item  `json:"old,omitempty"`
}

// TuningSnapshotHandler returns a handler listing every allowed variable, or only
// ?key=<key>. GET/HEAD only.
func TuningSnapshotHandler(t *tuning.Tuning, opts ...TuningOption) http.Handler {
	if t == nil {
		panic("ops: nil tuning.Tuning")
	}
	cfg := applyTuningOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		if key, ok := getQueryRequired(r, "key"); ok {
			if !cfg.allowed(key) {
				writeError(w, r, format, http.StatusForbidden, "key not allowed")
				return
			}
			it, found := t.Lookup(key)
			if !found {
				writeError(w, r, format, http.StatusNotFound, "key not found")
				return
			}
			writeTuning(w, r, format, tuningResponse{OK: true, Items: []tuning.Item{it}})
			return
		}
		var items []tuning.Item
		for _, it := range t.Snapshot().Items {
			if cfg.allowed(it.Key) {
				items = append(items, it)
			}
		}
		writeTuning(w, r, format, tuningResponse{OK: true, Items: items})
	})
}

// TuningSetHandler returns a handler that sets a variable from its string form.
//
// Input: POST ?key=<key>&value=<value>. An empty value is passed through.
func TuningSetHandler(t *tuning.Tuning, opts ...TuningOption) http.Handler {
	return tuningWriteHandler(t, opts, true)
}

// TuningResetHandler returns a handler that restores a variable's default.
//
// Input: POST ?key=<key>.
func TuningResetHandler(t *tuning.Tuning, opts ...TuningOption) http.Handler {
	return tuningWriteHandler(t, opts, false)
}

func tuningWriteHandler(t *tuning.Tuning, opts []TuningOption, set bool) http.Handler {
	if t == nil {
		panic("ops: nil tuning.Tuning")
	}
	cfg := applyTuningOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, format, "POST")
			return
		}
		key, ok := getQueryRequired(r, "key")
		if !ok {
			writeError(w, r, format, http.StatusBadRequest, "missing key")
			return
		}
		if !cfg.allowed(key) {
			writeError(w, r, format, http.StatusForbidden, "key not allowed")
			return
		}
		value, hasValue := getQueryRaw(r, "value")
		if set && !hasValue {
			writeError(w, r, format, http.StatusBadRequest, "missing value")
			return
		}

		old, found := t.Lookup(key)
		if !found {
			writeError(w, r, format, http.StatusNotFound, "key not found")
			return
		}
		var err error
		if set {
			err = t.SetFromString(key, value)
		} else {
			err = t.ResetToDefault(key)
		}
		if err != nil {
			writeError(w, r, format, mapTuningErrorToStatus(err), err.Error())
			return
		}
		now, _ := t.Lookup(key)
		writeTuning(w, r, format, tuningResponse{OK: true, Items: []tuning.Item{now}, Old: &old})
	})
}

func writeTuning(w http.ResponseWriter, r *http.Request, f Format, resp tuningResponse) {
	if writeStructured(w, r, f, http.StatusOK, resp) {
		return
	}
	writeTextHeader(w, http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	var b strings.Builder
	b.Grow(128 * (len(resp.Items) + 1))
	if resp.Old != nil {
		appendTuningItemLines(&b, "old.", *resp.Old)
	}
	for _, it := range resp.Items {
		appendTuningItemLines(&b, "", it)
	}
	_, _ = w.Write([]byte(b.String()))
}

// appendTuningItemLines writes "tuning\t<key>\t<prefix><field>\t<value>" lines.
func appendTuningItemLines(b *strings.Builder, prefix string, it tuning.Item) {
	line := func(field, value string) { textLine(b, "tuning", it.Key, prefix+field, value) }
	line("type", string(it.Type))
	line("value", escapeTextField(it.Value))
	line("default", escapeTextField(it.DefaultValue))
	line("source", it.Source.String())
	if !it.LastUpdatedAt.IsZero() {
		line("last_updated_at", it.LastUpdatedAt.Format(time.RFC3339Nano))
	}
}

func mapTuningErrorToStatus(err error) int {
	switch {
	case errors.Is(err, tuning.ErrInvalidKey), errors.Is(err, tuning.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, tuning.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
