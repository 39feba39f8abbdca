// Package config provides configuration management for dcmprune.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("/etc/dcmprune/config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("/etc/dcmprune/config.yaml")
//
//  3. From an optional file (defaults and environment when it is absent):
//     cfg, err := config.LoadOptional(path, false)
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention DCMPRUNE_SECTION_FIELD:
//
//   - DCMPRUNE_STORAGE_ROOT overrides storage.root
//   - DCMPRUNE_RETENTION_THRESHOLD overrides retention.threshold
//   - DCMPRUNE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Global Instance
//
// Commands install the loaded configuration with SetConfig. ReloadConfig
// swaps it after a successful reload and logs the changed sections that
// only apply at startup (listener, journal, telemetry). The daemon drives
// it from SIGHUP and from a Watcher on the configuration file.
//
// # Example Configuration
//
//	storage:
//	  root: /var/lib/dcmtk/db
//	  ae_titles: [DCMTK_STR_SCP]
//	retention:
//	  threshold: "15%"
//	  max_deletions: 1000
//	  age_key: received
//	  schedule: "*/15 * * * *"
//	journal:
//	  enabled: true
//	  sqlite:
//	    path: /var/lib/dcmprune/journal.db
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
