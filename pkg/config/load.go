package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "DCMPRUNE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Values from the file are layered over DefaultConfig. The result is
// validated. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides (DCMPRUNE_SECTION_FIELD). Environment
// variables always take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv builds a configuration from defaults and environment
// variables only.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOptional loads path with environment overrides. When the file does
// not exist and required is false, it falls back to LoadFromEnv so the
// binary works from cron with flags and environment alone.
func LoadOptional(path string, required bool) (*Config, error) {
	if path == "" {
		if required {
			return nil, fmt.Errorf("configuration file path is empty")
		}
		return LoadFromEnv()
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !required {
		return LoadFromEnv()
	}

	return LoadConfigWithEnvOverrides(path)
}

// envOverrides collects malformed environment values so they surface as
// validation errors instead of being silently ignored.
type envOverrides struct {
	errs []FieldError
}

func (e *envOverrides) str(name string, dst *string) {
	if val, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = val
	}
}

func (e *envOverrides) list(name string, dst *[]string) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envOverrides) boolean(name string, dst *bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(name, val, "must be a boolean")
		return
	}
	*dst = b
}

func (e *envOverrides) integer(name string, dst *int) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		e.fail(name, val, "must be an integer")
		return
	}
	*dst = i
}

func (e *envOverrides) float(name string, dst *float64) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		e.fail(name, val, "must be a number")
		return
	}
	*dst = f
}

func (e *envOverrides) duration(name string, dst *time.Duration) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(name, val, "must be a duration")
		return
	}
	*dst = d
}

func (e *envOverrides) fail(name, val, msg string) {
	e.errs = append(e.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("%q %s", val, msg),
	})
}

// applyEnvOverrides applies DCMPRUNE_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides

	// Storage overrides
	env.str("STORAGE_ROOT", &cfg.Storage.Root)
	env.list("STORAGE_AE_TITLES", &cfg.Storage.AETitles)
	env.str("STORAGE_QR_CONFIG_PATH", &cfg.Storage.QRConfigPath)
	env.str("STORAGE_INDEX_NAME", &cfg.Storage.IndexName)
	env.list("STORAGE_IN_PROGRESS_SUFFIXES", &cfg.Storage.InProgressSuffixes)
	env.duration("STORAGE_INDEX_LOCK_TIMEOUT", &cfg.Storage.IndexLockTimeout)
	env.duration("STORAGE_ORPHAN_GRACE", &cfg.Storage.OrphanGrace)

	// Retention overrides
	env.str("RETENTION_THRESHOLD", &cfg.Retention.Threshold)
	env.integer("RETENTION_MAX_DELETIONS", &cfg.Retention.MaxDeletions)
	env.str("RETENTION_AGE_KEY", &cfg.Retention.AgeKey)
	env.boolean("RETENTION_DRY_RUN", &cfg.Retention.DryRun)
	env.str("RETENTION_SCHEDULE", &cfg.Retention.Schedule)
	env.str("RETENTION_LOCK_PATH", &cfg.Retention.LockPath)
	env.str("RETENTION_ARCHIVE_MANIFESTS", &cfg.Retention.ArchiveManifests)

	// Journal overrides
	env.boolean("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	env.str("JOURNAL_BACKEND", &cfg.Journal.Backend)
	env.str("JOURNAL_SQLITE_PATH", &cfg.Journal.SQLite.Path)
	env.str("JOURNAL_SQLITE_DRIVER", &cfg.Journal.SQLite.Driver)
	env.duration("JOURNAL_SQLITE_MAX_AGE", &cfg.Journal.SQLite.MaxAge)

	// Daemon overrides
	env.str("DAEMON_LISTEN_ADDRESS", &cfg.Daemon.ListenAddress)
	env.boolean("DAEMON_WATCH_CONFIG", &cfg.Daemon.WatchConfig)
	env.boolean("DAEMON_RUN_ON_START", &cfg.Daemon.RunOnStart)

	// Telemetry overrides
	env.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	env.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	env.str("TELEMETRY_METRICS_TEXTFILE_PATH", &cfg.Telemetry.Metrics.TextfilePath)
	env.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	env.str("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	env.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	ApplyDefaults(cfg)

	if len(env.errs) > 0 {
		return ValidationError{Errors: env.errs}
	}
	return nil
}
