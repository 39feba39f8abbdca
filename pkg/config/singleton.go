package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

var (
	// globalConfig holds the configuration the process is running with.
	globalConfig *Config

	// configMutex protects access to globalConfig.
	configMutex sync.RWMutex
)

// SetConfig sets the global configuration instance.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads the configuration from path. The global instance is
// replaced only if loading and validation succeed. Changed settings that
// are only read at startup are logged.
func ReloadConfig(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}

	configMutex.Lock()
	prev := globalConfig
	globalConfig = cfg
	configMutex.Unlock()

	if fields := restartRequired(prev, cfg); len(fields) > 0 {
		slog.Warn("changed settings take effect after a restart",
			"component", "config",
			"fields", fields,
		)
	}
	return cfg, nil
}

// restartRequired lists the sections that differ between prev and next
// and are only applied when the daemon starts.
func restartRequired(prev, next *Config) []string {
	if prev == nil || next == nil {
		return nil
	}

	var fields []string
	if prev.Daemon.ListenAddress != next.Daemon.ListenAddress {
		fields = append(fields, "daemon.listen_address")
	}
	if prev.Daemon.WatchConfig != next.Daemon.WatchConfig {
		fields = append(fields, "daemon.watch_config")
	}
	if !reflect.DeepEqual(prev.Journal, next.Journal) {
		fields = append(fields, "journal")
	}
	if prev.Telemetry.Logging != next.Telemetry.Logging {
		fields = append(fields, "telemetry.logging")
	}
	if !reflect.DeepEqual(prev.Telemetry.Metrics, next.Telemetry.Metrics) {
		fields = append(fields, "telemetry.metrics")
	}
	if !reflect.DeepEqual(prev.Telemetry.Tracing, next.Telemetry.Tracing) {
		fields = append(fields, "telemetry.tracing")
	}
	return fields
}
