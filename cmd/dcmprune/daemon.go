package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dcmnode/dcmprune/pkg/cli"
	"dcmnode/dcmprune/pkg/config"
	"dcmnode/dcmprune/pkg/retention"
	"dcmnode/dcmprune/pkg/server"
	"dcmnode/dcmprune/pkg/telemetry/health"

	"github.com/spf13/cobra"
)

var daemonFlags struct {
	listenAddress string
	noRunOnStart  bool
	staleAfter    time.Duration
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run retention on a schedule",
	Long: `Run retention passes on the configured cron schedule until stopped.

The daemon serves Prometheus metrics, /healthz and /readyz on the configured
listen address. SIGHUP, or a change to the configuration file when
daemon.watch_config is set, reloads the policy and the schedule without a
restart. SIGINT and SIGTERM stop it after the current pass.

Examples:
  # Start with the default configuration file
  dcmprune daemon

  # Serve metrics on all interfaces
  dcmprune daemon --listen 0.0.0.0:9465`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVarP(&daemonFlags.listenAddress, "listen", "l", "", "override listen address")
	daemonCmd.Flags().BoolVar(&daemonFlags.noRunOnStart, "no-run-on-start", false, "wait for the first scheduled run")
	daemonCmd.Flags().DurationVar(&daemonFlags.staleAfter, "stale-after", 0, "report not ready when no run completed within this window (0 = never)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if daemonFlags.listenAddress != "" {
		cfg.Daemon.ListenAddress = daemonFlags.listenAddress
	}
	if daemonFlags.noRunOnStart {
		cfg.Daemon.RunOnStart = false
	}
	if cfg.Retention.Schedule == "" {
		return cli.NewConfigError("retention.schedule", "daemon requires a schedule")
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	scheduler := retention.NewScheduler(eng.pruner)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("retention.schedule", err.Error())
	}
	defer scheduler.Stop()

	l, _ := eng.pruner.Config()
	checker := health.New(5 * time.Second)
	checker.RegisterCheck("storage_root", func(ctx context.Context) error {
		current, _ := eng.pruner.Config()
		return health.StorageRootCheck(current)(ctx)
	})
	checker.RegisterCheck("last_run", health.LastRunCheck(scheduler.Last, daemonFlags.staleAfter, time.Now))

	errChan := make(chan error, 1)
	if cfg.Daemon.ListenAddress != "" {
		routes := server.Routes{
			Health:    checker,
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		}
		if cfg.Telemetry.Metrics.Enabled {
			routes.MetricsPath = cfg.Telemetry.Metrics.Path
			routes.Metrics = eng.collector.Handler()
		}

		srv := server.New(&cfg.Daemon, routes)
		go func() {
			if err := srv.Start(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	reload := func(next *config.Config) {
		applyReload(ctx, eng.pruner, scheduler, next)
	}

	if cfg.Daemon.WatchConfig {
		watcher, err := config.NewWatcher(cfgFile, 0)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		go func() {
			if err := watcher.Watch(ctx, reload); err != nil {
				slog.Error("config watcher failed", "error", err)
			}
		}()
	}

	hup, stopHUP := cli.ReloadSignals()
	defer stopHUP()

	slog.Info("dcmprune daemon started",
		"version", Version,
		"root", l.Root,
		"schedule", cfg.Retention.Schedule,
		"listen_address", cfg.Daemon.ListenAddress,
		"next_run", scheduler.NextRun(),
	)

	if cfg.Daemon.RunOnStart {
		go scheduler.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case err := <-errChan:
			return cli.NewCommandError("daemon", err)
		case <-hup:
			next, err := config.ReloadConfig(cfgFile)
			if err != nil {
				slog.Error("config reload failed, keeping previous configuration", "error", err)
				continue
			}
			slog.Info("configuration reloaded", "path", cfgFile, "trigger", "SIGHUP")
			reload(next)
		}
	}
}

// applyReload swaps the storage layout, retention policy and schedule.
// Listener, metrics and journal changes need a restart.
func applyReload(ctx context.Context, pruner *retention.Pruner, scheduler *retention.Scheduler, next *config.Config) {
	l, rc, err := retention.FromConfig(next)
	if err != nil {
		slog.Error("reloaded configuration rejected", "error", err)
		return
	}

	pruner.SetConfig(l, rc)

	if rc.Schedule == "" {
		slog.Warn("empty schedule in reloaded configuration ignored")
		return
	}
	if err := scheduler.Reschedule(ctx, rc.Schedule); err != nil {
		slog.Error("failed to apply reloaded schedule", "error", err)
	}
}
