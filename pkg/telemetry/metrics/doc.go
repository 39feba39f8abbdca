// Package metrics provides Prometheus metrics collection for dcmprune.
//
// # Overview
//
// The collector tracks retention runs and the free-space signal that drives
// them. Metrics are served on /metrics in daemon mode and written to a
// node_exporter textfile after one-shot runs.
//
// # Metrics
//
//   - dcmprune_retention_runs_total{outcome}
//   - dcmprune_retention_run_duration_seconds
//   - dcmprune_retention_evictions_total{ae_title}
//   - dcmprune_retention_reclaimed_bytes_total{ae_title}
//   - dcmprune_retention_deletion_failures_total
//   - dcmprune_retention_anomalies_total{kind}
//   - dcmprune_retention_last_run_timestamp_seconds
//   - dcmprune_retention_last_success_timestamp_seconds
//   - dcmprune_storage_free_bytes, dcmprune_storage_total_bytes,
//     dcmprune_storage_required_free_bytes
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordEviction("DCMTK_STR_SCP", 524288)
//	collector.RecordRun("satisfied", 2*time.Second)
//
//	// one-shot mode
//	err := collector.WriteTextfile("/var/lib/node_exporter/dcmprune.prom")
package metrics
