package config

import "time"

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStorageRoot      = "/var/lib/dcmtk/db"
	DefaultIndexName        = "index.jsonl"
	DefaultIndexLockTimeout = 30 * time.Second
	DefaultOrphanGrace      = 10 * time.Minute

	// Retention defaults
	DefaultThreshold    = "10%"
	DefaultMaxDeletions = 1000
	DefaultAgeKey       = "received"
	DefaultSchedule     = "*/15 * * * *"

	// Journal defaults
	DefaultJournalBackend      = "sqlite"
	DefaultJournalSQLitePath   = "/var/lib/dcmprune/journal.db"
	DefaultJournalSQLiteDriver = "sqlite"
	DefaultSQLiteMaxOpenConns  = 4
	DefaultSQLiteMaxIdleConns  = 2
	DefaultSQLiteBusyTimeout   = 5 * time.Second
	DefaultJournalMaxAge       = 90 * 24 * time.Hour

	// Daemon defaults
	DefaultListenAddress   = "127.0.0.1:9465"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "dcmprune"
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingExporter    = "otlp"
	DefaultTracingService     = "dcmprune"
	DefaultOTLPTimeout        = 10 * time.Second
)

// DefaultInProgressSuffixes are the temp-file conventions of the storage
// service.
var DefaultInProgressSuffixes = []string{".tmp", ".part", ".partial"}

// DefaultConfig returns a configuration with every default applied. Boolean
// defaults that are true live here rather than in ApplyDefaults, since a
// false from YAML cannot be told apart from an unset field.
func DefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			OrphanGrace: DefaultOrphanGrace,
		},
		Retention: RetentionConfig{
			MaxDeletions: DefaultMaxDeletions,
		},
		Journal: JournalConfig{
			SQLite: SQLiteConfig{
				WALMode: true,
				MaxAge:  DefaultJournalMaxAge,
			},
		},
		Daemon: DaemonConfig{
			ListenAddress: DefaultListenAddress,
			RunOnStart:    true,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{
				Enabled: true,
			},
			Tracing: TracingConfig{
				OTLP: OTLPConfig{Insecure: true},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = DefaultStorageRoot
	}
	if cfg.Storage.IndexName == "" {
		cfg.Storage.IndexName = DefaultIndexName
	}
	if cfg.Storage.InProgressSuffixes == nil {
		cfg.Storage.InProgressSuffixes = append([]string(nil), DefaultInProgressSuffixes...)
	}
	if cfg.Storage.IndexLockTimeout == 0 {
		cfg.Storage.IndexLockTimeout = DefaultIndexLockTimeout
	}

	// Retention defaults
	if cfg.Retention.Threshold == "" {
		cfg.Retention.Threshold = DefaultThreshold
	}
	if cfg.Retention.AgeKey == "" {
		cfg.Retention.AgeKey = DefaultAgeKey
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultSchedule
	}

	// Journal defaults
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = DefaultJournalBackend
	}
	if cfg.Journal.SQLite.Path == "" {
		cfg.Journal.SQLite.Path = DefaultJournalSQLitePath
	}
	if cfg.Journal.SQLite.Driver == "" {
		cfg.Journal.SQLite.Driver = DefaultJournalSQLiteDriver
	}
	if cfg.Journal.SQLite.MaxOpenConns == 0 {
		cfg.Journal.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Journal.SQLite.MaxIdleConns == 0 {
		cfg.Journal.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Journal.SQLite.BusyTimeout == 0 {
		cfg.Journal.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Daemon defaults
	if cfg.Daemon.ReadTimeout == 0 {
		cfg.Daemon.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Daemon.WriteTimeout == 0 {
		cfg.Daemon.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Daemon.IdleTimeout == 0 {
		cfg.Daemon.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}
