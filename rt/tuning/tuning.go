package tuning

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// entry is the type-erased view of a *Var used by key-based operations.
type entry interface {
	snapshot() Item
	setFromString(s string) error
	resetToDefault() error
}

// Tuning holds a set of runtime-tunable variables.
//
// It is safe for concurrent use. The zero value is ready to use.
type Tuning struct {
	mu   sync.RWMutex
	vars map[string]entry

	// writeMu serializes writes across all variables.
	writeMu sync.Mutex
}

// New creates a new Tuning registry.
func New() *Tuning {
	return &Tuning{vars: make(map[string]entry)}
}

// Snapshot returns a point-in-time view of all registered variables, sorted by key.
func (t *Tuning) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	out := make([]Item, 0, len(t.vars))
	for _, v := range t.vars {
		out = append(out, v.snapshot())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return Snapshot{Items: out}
}

// Lookup returns a point-in-time view of a single key.
func (t *Tuning) Lookup(key string) (Item, bool) {
	v, err := t.get(key)
	if err != nil {
		return Item{}, false
	}
	return v.snapshot(), true
}

// SetFromString parses value with the registered variable's syntax and applies it.
func (t *Tuning) SetFromString(key, value string) error {
	v, err := t.get(key)
	if err != nil {
		return err
	}
	return v.setFromString(value)
}

// ResetToDefault restores the registered default of key.
func (t *Tuning) ResetToDefault(key string) error {
	v, err := t.get(key)
	if err != nil {
		return err
	}
	return v.resetToDefault()
}

func (t *Tuning) get(key string) (entry, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil Tuning", ErrInvalidConfig)
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	t.mu.RLock()
	v, ok := t.vars[key]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return v, nil
}

func (t *Tuning) register(key string, v entry) error {
	if t == nil {
		return fmt.Errorf("%w: nil Tuning", ErrInvalidConfig)
	}
	if err := validateKey(key); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.vars == nil {
		t.vars = make(map[string]entry)
	}
	if _, ok := t.vars[key]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, key)
	}
	t.vars[key] = v
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		case c == '/':
			return fmt.Errorf("%w: %q contains '/' (not allowed)", ErrInvalidKey, key)
		case strings.ContainsRune(" \t\r\n", rune(c)):
			return fmt.Errorf("%w: %q contains whitespace (not allowed)", ErrInvalidKey, key)
		default:
			return fmt.Errorf("%w: %q contains invalid char %q (allowed: [A-Za-z0-9._-])", ErrInvalidKey, key, c)
		}
	}
	return nil
}
