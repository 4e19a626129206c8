package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable consulted by Load when no path is given.
const EnvPath = "FRAMEKIT_CONFIG"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the root configuration structure.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
}

// SchedulerConfig sizes the task scheduler.
type SchedulerConfig struct {
	// Workers is the pool size. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// PollInterval is the delay between ScheduleWhen condition checks.
	PollInterval Duration `yaml:"poll_interval"`
}

// MirrorConfig configures the frame mirror.
type MirrorConfig struct {
	RootName          string      `yaml:"root_name"`
	TransientSuffixes []string    `yaml:"transient_suffixes"`
	Retry             RetryConfig `yaml:"retry"`

	// TickInterval drives headless refresh of variable frames. 0 disables it.
	TickInterval Duration `yaml:"tick_interval"`
}

// RetryConfig bounds re-registration of frames whose parent is still being built.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	MinBackoff  Duration `yaml:"min_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// AdminConfig configures the optional admin HTTP server.
type AdminConfig struct {
	// Addr is the listen address. Empty disables the server.
	Addr string `yaml:"addr"`

	// Tokens, when non-empty, are required in the X-Admin-Token header.
	Tokens []string `yaml:"tokens"`

	// Writes enables the log level and tuning write endpoints.
	Writes bool `yaml:"writes"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			PollInterval: Duration(5 * time.Millisecond),
		},
		Mirror: MirrorConfig{
			RootName:          "world",
			TransientSuffixes: []string{"_transient"},
			Retry: RetryConfig{
				MaxAttempts: 40,
				MinBackoff:  Duration(100 * time.Millisecond),
				MaxBackoff:  Duration(500 * time.Millisecond),
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over Default and validates the result. An empty path falls back to
// $FRAMEKIT_CONFIG; if that is unset too, Default is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Scheduler.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: scheduler.workers must be >= 0", ErrInvalid))
	}
	if c.Scheduler.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: scheduler.poll_interval must be >= 0", ErrInvalid))
	}
	if c.Mirror.RootName == "" || strings.Contains(c.Mirror.RootName, "/") {
		errs = append(errs, fmt.Errorf("%w: mirror.root_name %q", ErrInvalid, c.Mirror.RootName))
	}
	r := c.Mirror.Retry
	if r.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%w: mirror.retry.max_attempts must be >= 0", ErrInvalid))
	}
	if r.MinBackoff <= 0 || r.MaxBackoff < r.MinBackoff {
		errs = append(errs, fmt.Errorf("%w: mirror.retry backoff needs 0 < min_backoff <= max_backoff", ErrInvalid))
	}
	if c.Mirror.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: mirror.tick_interval must be >= 0", ErrInvalid))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format))
	}
	return errors.Join(errs...)
}

// Duration is a time.Duration that reads and writes Go duration strings in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }
