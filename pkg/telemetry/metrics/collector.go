package metrics

import (
	"sync"
	"time"

	"dcmnode/dcmprune/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// otherLabel replaces AE titles beyond the cardinality limit.
const otherLabel = "other"

// Collector owns the Prometheus registry and every dcmprune metric.
// A nil *Collector is valid and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runMetrics  *RunMetrics
	diskMetrics *DiskMetrics

	// AE titles come from the filesystem; bound them.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics on registry.
// If registry is nil a new one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "dcmprune"
	}
	if len(cfg.DurationBuckets) == 0 {
		// Runs range from a statfs no-op to walking millions of files.
		cfg.DurationBuckets = []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(256),
	}

	c.runMetrics = NewRunMetrics(cfg, registry)
	c.diskMetrics = NewDiskMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

func (c *Collector) aeLabel(aeTitle string) string {
	if !c.cardinalityLimiter.Allow(aeTitle) {
		return otherLabel
	}
	return aeTitle
}

// RecordRun records a finished run.
//
// Parameters:
//   - outcome: run outcome ("noop", "satisfied", "cap_reached", "exhausted",
//     "skipped", "cancelled", "failed")
//   - duration: wall-clock duration of the run
func (c *Collector) RecordRun(outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}

	c.runMetrics.RecordRun(outcome, duration, time.Now())
}

// RecordEviction records one deleted object.
func (c *Collector) RecordEviction(aeTitle string, sizeBytes int64) {
	if !c.enabled() {
		return
	}

	c.runMetrics.RecordEviction(c.aeLabel(aeTitle), sizeBytes)
}

// RecordDeletionFailure records an object that could not be deleted.
func (c *Collector) RecordDeletionFailure() {
	if !c.enabled() {
		return
	}

	c.runMetrics.RecordDeletionFailure()
}

// RecordAnomaly records an index/filesystem anomaly by kind.
func (c *Collector) RecordAnomaly(kind string) {
	if !c.enabled() {
		return
	}

	c.runMetrics.RecordAnomaly(kind)
}

// UpdateDiskUsage sets the storage gauges.
func (c *Collector) UpdateDiskUsage(free, total, required uint64) {
	if !c.enabled() {
		return
	}

	c.diskMetrics.Update(free, total, required)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
