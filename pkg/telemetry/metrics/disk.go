package metrics

import (
	"dcmnode/dcmprune/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DiskMetrics exposes the last free-space measurement of the storage root.
type DiskMetrics struct {
	freeBytes     prometheus.Gauge
	totalBytes    prometheus.Gauge
	requiredBytes prometheus.Gauge
}

// NewDiskMetrics creates and registers storage gauges.
func NewDiskMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DiskMetrics {
	const subsystem = "storage"

	dm := &DiskMetrics{
		freeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: subsystem,
			Name:      "free_bytes",
			Help:      "Bytes available on the filesystem backing the storage root",
		}),
		totalBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: subsystem,
			Name:      "total_bytes",
			Help:      "Size of the filesystem backing the storage root",
		}),
		requiredBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: subsystem,
			Name:      "required_free_bytes",
			Help:      "Free bytes the retention threshold requires",
		}),
	}

	registry.MustRegister(dm.freeBytes, dm.totalBytes, dm.requiredBytes)

	return dm
}

// Update sets all storage gauges.
func (dm *DiskMetrics) Update(free, total, required uint64) {
	dm.freeBytes.Set(float64(free))
	dm.totalBytes.Set(float64(total))
	dm.requiredBytes.Set(float64(required))
}
