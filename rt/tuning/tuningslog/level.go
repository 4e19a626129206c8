package tuningslog

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/evan-idocoding/framekit/rt/tuning"
)

var levels = []struct {
	name  string
	level slog.Level
}{
	{"debug", slog.LevelDebug},
	{"info", slog.LevelInfo},
	{"warn", slog.LevelWarn},
	{"error", slog.LevelError},
}

var aliases = map[string]string{"warning": "warn", "err": "error"}

// LevelVar registers key as an enum of debug, info, warn and error and returns a
// slog.LevelVar that follows it. Values are case-insensitive and "warning" and "err"
// are accepted as aliases. defaultLevel is bucketed with LevelName.
func LevelVar(t *tuning.Tuning, key string, defaultLevel slog.Level, opts ...tuning.Option[string]) (*tuning.Var[string], *slog.LevelVar, error) {
	if t == nil {
		return nil, nil, fmt.Errorf("%w: nil Tuning", tuning.ErrInvalidConfig)
	}
	lv := new(slog.LevelVar)
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.name
	}

	// lv is updated before caller callbacks run.
	base := []tuning.Option[string]{
		tuning.WithNormalize(normalize),
		tuning.WithOnChange(func(s string) { lv.Set(levelOf(s)) }),
	}
	ev, err := t.Enum(key, LevelName(defaultLevel), names, append(base, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	lv.Set(levelOf(ev.Get()))
	return ev, lv, nil
}

// ParseLevel accepts the spellings LevelVar accepts.
func ParseLevel(s string) (slog.Level, bool) {
	n, ok := normalize(s)
	if !ok {
		return 0, false
	}
	return levelOf(n), true
}

// LevelName buckets l into debug, info, warn or error.
func LevelName(l slog.Level) string {
	name := levels[0].name
	for _, e := range levels {
		if l >= e.level {
			name = e.name
		}
	}
	return name
}

func normalize(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if a, ok := aliases[s]; ok {
		s = a
	}
	for _, e := range levels {
		if e.name == s {
			return s, true
		}
	}
	return "", false
}

func levelOf(name string) slog.Level {
	for _, e := range levels {
		if e.name == name {
			return e.level
		}
	}
	return slog.LevelInfo
}
