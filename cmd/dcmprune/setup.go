package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dcmnode/dcmprune/pkg/cli"
	"dcmnode/dcmprune/pkg/config"
	"dcmnode/dcmprune/pkg/retention"
	"dcmnode/dcmprune/pkg/retention/journal"
	"dcmnode/dcmprune/pkg/telemetry/logging"
	"dcmnode/dcmprune/pkg/telemetry/metrics"
	"dcmnode/dcmprune/pkg/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// loadConfig loads the configuration file. The default path may be
// missing, in which case defaults and DCMPRUNE_* variables apply. An
// explicit --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	required := cmd.Flags().Changed("config")

	cfg, err := config.LoadOptional(cfgFile, required)
	if err != nil {
		return nil, cli.NewExitError(cli.ExitConfig, err)
	}
	config.SetConfig(cfg)
	return cfg, nil
}

// setupLogging installs the configured logger as the slog default.
func setupLogging(cfg *config.Config) error {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return config.ValidationError{Errors: []config.FieldError{{
			Field:   "telemetry.logging",
			Message: err.Error(),
		}}}
	}

	slog.SetDefault(logger.Slog())
	return nil
}

// openJournal opens the configured journal, or returns nil when journaling
// is disabled.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}

	j, err := journal.Open(cfg.Journal.Backend, sqliteConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

func sqliteConfig(cfg *config.Config) *journal.SQLiteConfig {
	return &journal.SQLiteConfig{
		Path:         cfg.Journal.SQLite.Path,
		Driver:       cfg.Journal.SQLite.Driver,
		MaxOpenConns: cfg.Journal.SQLite.MaxOpenConns,
		MaxIdleConns: cfg.Journal.SQLite.MaxIdleConns,
		WALMode:      cfg.Journal.SQLite.WALMode,
		BusyTimeout:  cfg.Journal.SQLite.BusyTimeout,
		MaxAge:       cfg.Journal.SQLite.MaxAge,
	}
}

// engine bundles a pruner with the collaborators the caller must close.
type engine struct {
	pruner    *retention.Pruner
	collector *metrics.Collector
	journal   journal.Journal
	tracer    *tracing.Tracer
}

func (e *engine) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.tracer.Shutdown(ctx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}

	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			slog.Warn("failed to close journal", "error", err)
		}
	}
}

// newEngine builds the pruner for cfg with metrics and the journal wired in.
func newEngine(cfg *config.Config) (*engine, error) {
	l, rc, err := retention.FromConfig(cfg)
	if err != nil {
		return nil, config.ValidationError{Errors: []config.FieldError{{
			Field:   "retention",
			Message: err.Error(),
		}}}
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	j, err := openJournal(cfg)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	opts := []retention.Option{
		retention.WithMetrics(collector),
		retention.WithTracer(tracer),
	}
	if j != nil {
		opts = append(opts, retention.WithJournal(j))
	}

	return &engine{
		pruner:    retention.NewPruner(l, rc, opts...),
		collector: collector,
		journal:   j,
		tracer:    tracer,
	}, nil
}
