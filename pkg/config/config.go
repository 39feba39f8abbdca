package config

import "time"

// Config is the root configuration structure for dcmprune.
type Config struct {
	// Storage describes the DICOM storage root and its per-AE layout.
	Storage StorageConfig `yaml:"storage"`

	// Retention contains the eviction policy.
	Retention RetentionConfig `yaml:"retention"`

	// Journal contains the optional run journal settings.
	Journal JournalConfig `yaml:"journal"`

	// Daemon contains settings for `dcmprune daemon`.
	Daemon DaemonConfig `yaml:"daemon"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StorageConfig describes the storage root written by the DICOM SCP.
type StorageConfig struct {
	// Root is the storage root directory, one subdirectory per AE title.
	// Default: "/var/lib/dcmtk/db"
	Root string `yaml:"root"`

	// AETitles restricts pruning to these AE directories. Empty means
	// discover them from QRConfigPath or the subdirectories of Root.
	AETitles []string `yaml:"ae_titles"`

	// QRConfigPath is an optional dcmqrscp.cfg whose AETable lists the
	// storage areas.
	QRConfigPath string `yaml:"qr_config_path"`

	// IndexName is the per-AE catalog file name.
	// Default: "index.jsonl"
	IndexName string `yaml:"index_name"`

	// InProgressSuffixes mark files the storage service is still writing.
	// Files with a leading dot are always treated as in progress.
	// Default: [".tmp", ".part", ".partial"]
	InProgressSuffixes []string `yaml:"in_progress_suffixes"`

	// IndexLockTimeout bounds the wait for the catalog lock held by the
	// storage service.
	// Default: 30s
	IndexLockTimeout time.Duration `yaml:"index_lock_timeout"`

	// OrphanGrace is how old a file without an index entry must be before
	// it is adopted into the index or considered for eviction. Younger
	// files are left to the storage service, which indexes after writing.
	// Default: 10m
	OrphanGrace time.Duration `yaml:"orphan_grace"`
}

// RetentionConfig contains the eviction policy.
type RetentionConfig struct {
	// Threshold is the free space to keep, either a percentage of the
	// filesystem ("15%") or a byte size ("20GiB").
	// Default: "10%"
	Threshold string `yaml:"threshold"`

	// MaxDeletions caps evictions per run. Zero or negative is unlimited.
	// Default: 1000
	MaxDeletions int `yaml:"max_deletions"`

	// AgeKey selects the eviction order.
	// Options: "received", "study_date", "mtime"
	// Default: "received"
	AgeKey string `yaml:"age_key"`

	// DryRun plans evictions without deleting anything.
	// Default: false
	DryRun bool `yaml:"dry_run"`

	// Schedule is the cron expression used by the daemon.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// LockPath is the run lock file. Empty means "<root>/.dcmprune.lock".
	LockPath string `yaml:"lock_path"`

	// ArchiveManifests is a directory receiving a JSON manifest of the
	// objects evicted by each run. Empty disables manifests.
	ArchiveManifests string `yaml:"archive_manifests"`
}

// JournalConfig contains the run journal settings.
type JournalConfig struct {
	// Enabled controls whether run summaries are journaled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the journal backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite journal settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "/var/lib/dcmprune/journal.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 2
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxAge removes journal rows older than this when the journal is
	// opened and on every write.
	// Zero keeps rows forever.
	// Default: 2160h (90 days)
	MaxAge time.Duration `yaml:"max_age"`
}

// DaemonConfig contains settings for the long-running scheduler mode.
type DaemonConfig struct {
	// ListenAddress serves /metrics, /healthz and /readyz. Empty disables
	// the HTTP listener.
	// Default: "127.0.0.1:9465"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the HTTP read timeout.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the HTTP keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// WatchConfig reloads the configuration file when it changes.
	// Default: false
	WatchConfig bool `yaml:"watch_config"`

	// RunOnStart runs one retention pass immediately at startup.
	// Default: true
	RunOnStart bool `yaml:"run_on_start"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "dcmprune"
	Namespace string `yaml:"namespace"`

	// DurationBuckets are the run duration histogram buckets in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// TextfilePath receives the metrics after each one-shot run, for the
	// node_exporter textfile collector. Empty disables it.
	TextfilePath string `yaml:"textfile_path"`
}

// TracingConfig contains distributed tracing configuration. Each retention
// run becomes one trace.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of runs to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter. Only "otlp" is supported.
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "dcmprune"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
