// Package tracing provides OpenTelemetry tracing for retention runs.
//
// Each run is one trace: a "retention.run" root span with child spans for
// the survey of the AE catalogs, the eviction loop and the catalog commit
// of every AE directory. Spans are exported over OTLP gRPC. When tracing
// is disabled a noop tracer is used and span creation costs nothing.
//
// # Sampling
//
// Three sampling strategies are supported:
//   - always: sample every run
//   - never: sample no runs
//   - ratio: sample a fraction of runs by trace ID
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	pruner := retention.NewPruner(l, rcfg, retention.WithTracer(tracer))
package tracing
