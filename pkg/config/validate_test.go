package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "valid defaults",
			mutate:    func(*Config) {},
			wantField: "",
		},
		{
			name:      "empty root",
			mutate:    func(c *Config) { c.Storage.Root = "" },
			wantField: "storage.root",
		},
		{
			name:      "ae title with slash",
			mutate:    func(c *Config) { c.Storage.AETitles = []string{"../etc"} },
			wantField: "storage.ae_titles[0]",
		},
		{
			name:      "ae title too long",
			mutate:    func(c *Config) { c.Storage.AETitles = []string{"AN_AE_TITLE_OVER_16"} },
			wantField: "storage.ae_titles[0]",
		},
		{
			name:      "index name with directory",
			mutate:    func(c *Config) { c.Storage.IndexName = "sub/index.jsonl" },
			wantField: "storage.index_name",
		},
		{
			name:      "zero threshold",
			mutate:    func(c *Config) { c.Retention.Threshold = "0" },
			wantField: "retention.threshold",
		},
		{
			name:      "unknown age key",
			mutate:    func(c *Config) { c.Retention.AgeKey = "accessed" },
			wantField: "retention.age_key",
		},
		{
			name:      "bad cron",
			mutate:    func(c *Config) { c.Retention.Schedule = "61 * * * *" },
			wantField: "retention.schedule",
		},
		{
			name:      "empty schedule allowed",
			mutate:    func(c *Config) { c.Retention.Schedule = "" },
			wantField: "",
		},
		{
			name: "unknown journal backend",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Backend = "postgres"
			},
			wantField: "journal.backend",
		},
		{
			name: "unknown sqlite driver",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.SQLite.Driver = "duckdb"
			},
			wantField: "journal.sqlite.driver",
		},
		{
			name: "disabled journal not validated",
			mutate: func(c *Config) {
				c.Journal.Backend = "postgres"
			},
			wantField: "",
		},
		{
			name:      "bad listen address",
			mutate:    func(c *Config) { c.Daemon.ListenAddress = "localhost" },
			wantField: "daemon.listen_address",
		},
		{
			name:      "listener disabled",
			mutate:    func(c *Config) { c.Daemon.ListenAddress = "" },
			wantField: "",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "bad metrics path",
			mutate:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
		{
			name:      "unsorted buckets",
			mutate:    func(c *Config) { c.Telemetry.Metrics.DurationBuckets = []float64{1, 0.5} },
			wantField: "telemetry.metrics.duration_buckets",
		},
		{
			name:      "tracing without endpoint",
			mutate:    func(c *Config) { c.Telemetry.Tracing.Enabled = true },
			wantField: "telemetry.tracing.endpoint",
		},
		{
			name:      "bad sample ratio",
			mutate:    func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name:      "bad sampler",
			mutate:    func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" },
			wantField: "telemetry.tracing.sampler",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if single.Error() != "configuration validation failed: a: bad" {
		t.Errorf("unexpected single error message %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if !strings.Contains(multi.Error(), "2 errors") || !strings.Contains(multi.Error(), "  - b: worse") {
		t.Errorf("unexpected multi error message %q", multi.Error())
	}
}
