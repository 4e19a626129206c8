package tuning

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Duration registers a time.Duration variable.
func (t *Tuning) Duration(key string, def time.Duration, opts ...Option[time.Duration]) (*Var[time.Duration], error) {
	return newVar(t, key, TypeDuration, def, func(s string) (time.Duration, error) {
		return time.ParseDuration(strings.TrimSpace(s))
	}, time.Duration.String).finish(opts)
}

// Int64 registers an int64 variable.
func (t *Tuning) Int64(key string, def int64, opts ...Option[int64]) (*Var[int64], error) {
	return newVar(t, key, TypeInt64, def, func(s string) (int64, error) {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}, func(x int64) string {
		return strconv.FormatInt(x, 10)
	}).finish(opts)
}

// Enum registers a string variable restricted to allowed. The order of allowed is kept
// in snapshots.
func (t *Tuning) Enum(key, def string, allowed []string, opts ...Option[string]) (*Var[string], error) {
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: %q enum allowed list is required", ErrInvalidConfig, key)
	}
	allowed = slices.Clone(allowed)
	for i, a := range allowed {
		if slices.Contains(allowed[:i], a) {
			return nil, fmt.Errorf("%w: %q duplicate enum value %q", ErrInvalidConfig, key, a)
		}
	}
	v := newVar(t, key, TypeEnum, def, func(s string) (string, error) {
		return s, nil
	}, func(s string) string { return s })
	v.cons.EnumAllowed = allowed
	v.validate = append(v.validate, func(s string) error {
		if !slices.Contains(allowed, s) {
			return fmt.Errorf("%w: %q must be one of %v, got %q", ErrInvalidValue, key, allowed, s)
		}
		return nil
	})
	return v.finish(opts)
}

var errNotNormalizable = errors.New("not an accepted spelling")

// WithNormalize maps raw enum input to its canonical spelling before validation.
// ok=false rejects the input.
func WithNormalize(normalize func(string) (string, bool)) Option[string] {
	return func(v *Var[string]) {
		parse := v.parse
		v.parse = func(s string) (string, error) {
			n, ok := normalize(s)
			if !ok {
				return "", errNotNormalizable
			}
			return parse(n)
		}
		if n, ok := normalize(v.def); ok {
			v.def = n
		}
	}
}
