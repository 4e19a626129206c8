package tuning

import (
	"cmp"
	"fmt"
	"sync/atomic"
	"time"
)

// Var is a runtime-tunable value of type T.
type Var[T comparable] struct {
	t   *Tuning
	k   string
	typ Type
	def T

	parse    func(string) (T, error)
	format   func(T) string
	validate []func(T) error
	cons     Constraints
	onChange []func(T)

	cur       atomic.Pointer[T]
	updatedAt atomic.Int64 // unix nanos, 0 = never
}

// Option configures a Var at registration time.
type Option[T comparable] func(*Var[T])

// WithMin rejects values below min.
func WithMin[T cmp.Ordered](min T) Option[T] {
	return func(v *Var[T]) {
		v.cons.Min = v.format(min)
		v.validate = append(v.validate, func(x T) error {
			if x < min {
				return fmt.Errorf("%w: %q must be >= %s, got %s", ErrInvalidValue, v.k, v.format(min), v.format(x))
			}
			return nil
		})
	}
}

// WithMax rejects values above max.
func WithMax[T cmp.Ordered](max T) Option[T] {
	return func(v *Var[T]) {
		v.cons.Max = v.format(max)
		v.validate = append(v.validate, func(x T) error {
			if x > max {
				return fmt.Errorf("%w: %q must be <= %s, got %s", ErrInvalidValue, v.k, v.format(max), v.format(x))
			}
			return nil
		})
	}
}

// WithOnChange appends a callback invoked after every successful write.
func WithOnChange[T comparable](fn func(T)) Option[T] {
	return func(v *Var[T]) {
		if fn != nil {
			v.onChange = append(v.onChange, fn)
		}
	}
}

func newVar[T comparable](t *Tuning, key string, typ Type, def T, parse func(string) (T, error), format func(T) string) *Var[T] {
	return &Var[T]{t: t, k: key, typ: typ, def: def, parse: parse, format: format}
}

// finish validates the default, stores it and registers v.
func (v *Var[T]) finish(opts []Option[T]) (*Var[T], error) {
	if v.t == nil {
		return nil, fmt.Errorf("%w: nil Tuning", ErrInvalidConfig)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if err := v.check(v.def); err != nil {
		return nil, fmt.Errorf("%w: default value: %v", ErrInvalidConfig, err)
	}
	def := v.def
	v.cur.Store(&def)
	if err := v.t.register(v.k, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Var[T]) Key() string { return v.k }

// Get returns the current value.
func (v *Var[T]) Get() T { return *v.cur.Load() }

func (v *Var[T]) Source() Source {
	if v.Get() == v.def {
		return SourceDefault
	}
	return SourceRuntimeSet
}

func (v *Var[T]) LastUpdatedAt() time.Time {
	ns := v.updatedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Set validates and applies x, then runs onChange callbacks.
func (v *Var[T]) Set(x T) error {
	if err := v.check(x); err != nil {
		return err
	}
	v.t.writeMu.Lock()
	v.cur.Store(&x)
	v.updatedAt.Store(time.Now().UnixNano())
	v.t.writeMu.Unlock()

	for _, cb := range v.onChange {
		safeCall(cb, x)
	}
	return nil
}

func (v *Var[T]) ResetToDefault() error { return v.Set(v.def) }

func (v *Var[T]) check(x T) error {
	for _, fn := range v.validate {
		if err := fn(x); err != nil {
			return err
		}
	}
	return nil
}

func (v *Var[T]) setFromString(s string) error {
	x, err := v.parse(s)
	if err != nil {
		return fmt.Errorf("%w: %q expects %s, got %q: %v", ErrInvalidValue, v.k, v.typ, s, err)
	}
	return v.Set(x)
}

func (v *Var[T]) resetToDefault() error { return v.ResetToDefault() }

func (v *Var[T]) snapshot() Item {
	return Item{
		Key:           v.k,
		Type:          v.typ,
		Value:         v.format(v.Get()),
		DefaultValue:  v.format(v.def),
		Source:        v.Source(),
		LastUpdatedAt: v.LastUpdatedAt(),
		Constraints:   v.cons,
	}
}

func safeCall[T any](fn func(T), x T) {
	defer func() { _ = recover() }()
	fn(x)
}
