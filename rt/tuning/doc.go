// Package tuning provides runtime-tunable parameters that ops endpoints can change live.
//
// A Tuning is a registry of typed variables keyed by dotted names such as
// "mirror.retry.max_backoff". Code reads a variable through its *Var handle; ops
// surfaces write it by key through SetFromString.
//
// # Kinds
//
//   - Duration: time.Duration, Go duration syntax ("250ms").
//   - Int64: base-10 integers.
//   - Enum: a string restricted to an allowed list, optionally normalized.
//
// Get is lock-free and allocation-free. Writes are serialized per Tuning.
//
// # Callbacks
//
// WithOnChange callbacks run synchronously after a successful write, in registration
// order, outside the write lock. Panics in callbacks are recovered and dropped. Callbacks
// run even when the value did not change.
//
// # Keys
//
// Keys must be non-empty and contain only [A-Za-z0-9._-]. Keys are case-sensitive.
//
// # Source
//
// Source reflects the current value, not history: SourceDefault when the value equals the
// registered default, SourceRuntimeSet otherwise.
package tuning
