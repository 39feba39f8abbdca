// Package telemetry groups the observability packages of dcmprune.
//
//   - logging: slog setup and run/AE/object context fields
//   - metrics: Prometheus retention metrics and the textfile export
//   - tracing: OpenTelemetry spans per retention run
//   - health: liveness and readiness checks for the daemon
package telemetry
