// Package server provides the HTTP listener of the dcmprune daemon.
//
// The daemon exposes Prometheus metrics and the health probes of package
// health on a single listener:
//
//	srv := server.New(&cfg.Daemon, server.Routes{
//	    MetricsPath: cfg.Telemetry.Metrics.Path,
//	    Metrics:     collector.Handler(),
//	    Health:      checker,
//	    Version:     version,
//	})
//	go srv.Start(ctx)
//
// Start blocks until ctx is cancelled or the listener fails, then shuts the
// server down within the configured shutdown timeout.
package server
