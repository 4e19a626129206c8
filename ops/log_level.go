package ops

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/evan-idocoding/framekit/rt/tuning"
	"github.com/evan-idocoding/framekit/rt/tuning/tuningslog"
)

type logLevelConfig struct {
	format Format

	tuning *tuning.Tuning
	key    string
}

// LogLevelOption configures LogLevelGetHandler / LogLevelSetHandler.
type LogLevelOption func(*logLevelConfig)

// WithLogLevelDefaultFormat sets the default response format for log level handlers.
// ?format=json|text overrides it per request. Default is FormatText.
func WithLogLevelDefaultFormat(f Format) LogLevelOption {
	return func(c *logLevelConfig) { c.format = f }
}

// WithLogLevelTuning routes writes through the tuning key bound to the LevelVar by
// tuningslog.LevelVar, so the tuning snapshot and the logger agree.
func WithLogLevelTuning(t *tuning.Tuning, key string) LogLevelOption {
	return func(c *logLevelConfig) { c.tuning, c.key = t, key }
}

func applyLogLevelOptions(opts []LogLevelOption) logLevelConfig {
	cfg := logLevelConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.format = textOnly(cfg.format)
	return cfg
}

// LogLevelSnapshot is a point-in-time snapshot of a slog.LevelVar.
type LogLevelSnapshot struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`
	// LevelValue is the numeric slog level (Debug=-4, Info=0, Warn=4, Error=8).
	LevelValue int `json:"level_value"`
}

// LogLevel returns a snapshot of lv.
func LogLevel(lv *slog.LevelVar) LogLevelSnapshot {
	if lv == nil {
		return LogLevelSnapshot{}
	}
	l := lv.Level()
	return LogLevelSnapshot{Level: tuningslog.LevelName(l), LevelValue: int(l)}
}

type logLevelResponse struct {
	OK    bool              `json:"ok"`
	Error string            `json:"error,omitempty"`
	Log   *LogLevelSnapshot `json:"log,omitempty"`
	Old   *LogLevelSnapshot `json:"old,omitempty"`
}

// LogLevelGetHandler returns a handler that outputs the current level. GET/HEAD only.
func LogLevelGetHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := applyLogLevelOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		snap := LogLevel(lv)
		writeLogLevel(w, r, format, logLevelResponse{OK: true, Log: &snap})
	})
}

// LogLevelSetHandler returns a handler that sets the level.
//
// Input:
//   - POST only
//   - URL query: ?level=debug|info|warn|error (case-insensitive; "warning" and "err"
//     are accepted)
func LogLevelSetHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := applyLogLevelOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := textOnly(formatFromRequest(r, cfg.format))
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, format, "POST")
			return
		}
		raw, _ := getQueryRaw(r, "level")
		level, ok := tuningslog.ParseLevel(raw)
		if !ok {
			writeError(w, r, format, http.StatusBadRequest, "invalid level (want one of: debug, info, warn, error)")
			return
		}

		old := LogLevel(lv)
		if cfg.tuning != nil {
			if err := cfg.tuning.SetFromString(cfg.key, tuningslog.LevelName(level)); err != nil {
				writeError(w, r, format, mapTuningErrorToStatus(err), err.Error())
				return
			}
		} else {
			lv.Set(level)
		}
		snap := LogLevel(lv)
		writeLogLevel(w, r, format, logLevelResponse{OK: true, Log: &snap, Old: &old})
	})
}

func writeLogLevel(w http.ResponseWriter, r *http.Request, f Format, resp logLevelResponse) {
	if writeStructured(w, r, f, http.StatusOK, resp) {
		return
	}
	writeTextHeader(w, http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	var b strings.Builder
	if resp.Old != nil {
		textLine(&b, "log", "old_level", resp.Old.Level)
	}
	textLine(&b, "log", "level", resp.Log.Level)
	textLine(&b, "log", "level_value", strconv.Itoa(resp.Log.LevelValue))
	_, _ = w.Write([]byte(b.String()))
}
