package metrics

import (
	"time"

	"dcmnode/dcmprune/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics tracks retention runs.
type RunMetrics struct {
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	evictionsTotal   *prometheus.CounterVec
	reclaimedBytes   *prometheus.CounterVec
	deletionFailures prometheus.Counter
	anomaliesTotal   *prometheus.CounterVec
	lastRun          prometheus.Gauge
	lastSuccess      prometheus.Gauge
}

// NewRunMetrics creates and registers run metrics with the provided registry.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	const subsystem = "retention"

	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of retention runs by outcome",
			},
			[]string{"outcome"},
		),

		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of retention runs in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),

		evictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "evictions_total",
				Help:      "Total number of stored objects evicted",
			},
			[]string{"ae_title"},
		),

		reclaimedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "reclaimed_bytes_total",
				Help:      "Total bytes reclaimed by eviction",
			},
			[]string{"ae_title"},
		),

		deletionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "deletion_failures_total",
				Help:      "Total number of objects that could not be deleted",
			},
		),

		anomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "anomalies_total",
				Help:      "Total number of anomalies detected by kind",
			},
			[]string{"kind"},
		),

		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last finished run",
			},
		),

		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that did not fail",
			},
		),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.runDuration,
		rm.evictionsTotal,
		rm.reclaimedBytes,
		rm.deletionFailures,
		rm.anomaliesTotal,
		rm.lastRun,
		rm.lastSuccess,
	)

	return rm
}

// RecordRun records the outcome and duration of a run finished at now.
func (rm *RunMetrics) RecordRun(outcome string, duration time.Duration, now time.Time) {
	rm.runsTotal.WithLabelValues(outcome).Inc()
	rm.runDuration.Observe(duration.Seconds())
	rm.lastRun.Set(float64(now.Unix()))

	if outcome != "failed" {
		rm.lastSuccess.Set(float64(now.Unix()))
	}
}

// RecordEviction records one evicted object.
func (rm *RunMetrics) RecordEviction(aeTitle string, sizeBytes int64) {
	rm.evictionsTotal.WithLabelValues(aeTitle).Inc()
	if sizeBytes > 0 {
		rm.reclaimedBytes.WithLabelValues(aeTitle).Add(float64(sizeBytes))
	}
}

// RecordDeletionFailure records one failed deletion.
func (rm *RunMetrics) RecordDeletionFailure() {
	rm.deletionFailures.Inc()
}

// RecordAnomaly records one anomaly.
func (rm *RunMetrics) RecordAnomaly(kind string) {
	rm.anomaliesTotal.WithLabelValues(kind).Inc()
}
