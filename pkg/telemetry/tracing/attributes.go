package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys of retention spans.
const (
	AttrRunID     = "dcmprune.run_id"
	AttrRoot      = "dcmprune.root"
	AttrThreshold = "dcmprune.threshold"
	AttrDryRun    = "dcmprune.dry_run"
	AttrAETitle   = "dcmprune.ae_title"
	AttrAEDirs    = "dcmprune.ae_dirs"

	AttrOutcome        = "dcmprune.outcome"
	AttrEvicted        = "dcmprune.evicted"
	AttrBytesReclaimed = "dcmprune.bytes_reclaimed"
	AttrCandidates     = "dcmprune.candidates"
	AttrAnomalies      = "dcmprune.anomalies"
	AttrFailures       = "dcmprune.deletion_failures"
)

// SetRunAttributes sets the identifying attributes of a retention run.
func SetRunAttributes(span trace.Span, runID, root, threshold string, dryRun bool) {
	span.SetAttributes(
		attribute.String(AttrRunID, runID),
		attribute.String(AttrRoot, root),
		attribute.String(AttrThreshold, threshold),
		attribute.Bool(AttrDryRun, dryRun),
	)
}

// SetResultAttributes sets the result attributes of a retention run.
func SetResultAttributes(span trace.Span, outcome string, evicted int, bytesReclaimed uint64, anomalies int) {
	span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int(AttrEvicted, evicted),
		attribute.Int64(AttrBytesReclaimed, int64(bytesReclaimed)),
		attribute.Int(AttrAnomalies, anomalies),
	)
}
