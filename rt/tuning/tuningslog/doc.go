// Package tuningslog binds tuning variables to log/slog.
package tuningslog
