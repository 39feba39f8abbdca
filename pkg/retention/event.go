package retention

import (
	"time"

	"dcmnode/dcmprune/pkg/retention/journal"
)

// Outcome is how a run ended.
type Outcome string

const (
	// OutcomeNoop: free space already met the threshold.
	OutcomeNoop Outcome = "noop"
	// OutcomeSatisfied: evictions brought free space up to the threshold.
	OutcomeSatisfied Outcome = "satisfied"
	// OutcomeCapReached: the per-run deletion cap stopped the run first.
	OutcomeCapReached Outcome = "cap_reached"
	// OutcomeExhausted: every candidate was tried and space is still short.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeSkipped: another run held the lock.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeCancelled: the context was cancelled between deletions.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeFailed: the run aborted with an error.
	OutcomeFailed Outcome = "failed"
)

// AnomalyKind classifies a recovered problem.
type AnomalyKind string

const (
	AnomalyIndexInconsistent AnomalyKind = "IndexInconsistent"
	AnomalyDeletionFailed    AnomalyKind = "DeletionFailed"
)

// EvictedObject is one object removed (or, in dry-run, planned for
// removal) by a run.
type EvictedObject struct {
	AETitle  string    `json:"ae_title"`
	ObjectID string    `json:"object_id,omitempty"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Age      time.Time `json:"age"`
	AgeFrom  string    `json:"age_from"`

	StudyUID    string `json:"study_uid,omitempty"`
	SeriesUID   string `json:"series_uid,omitempty"`
	InstanceUID string `json:"instance_uid,omitempty"`
	StudyDate   string `json:"study_date,omitempty"`
}

// Anomaly is a recovered problem seen during a run.
type Anomaly struct {
	Kind     AnomalyKind `json:"kind"`
	AETitle  string      `json:"ae_title,omitempty"`
	ObjectID string      `json:"object_id,omitempty"`
	Path     string      `json:"path,omitempty"`
	Detail   string      `json:"detail"`
}

// Event is the record of one run. It exists for the duration of the
// invocation and is emitted as log lines and, optionally, a journal entry.
type Event struct {
	RunID       string    `json:"run_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	Root        string    `json:"root"`
	Threshold   string    `json:"threshold"`
	AgeKey      AgeKey    `json:"age_key"`
	Cap         int       `json:"cap"`
	DryRun      bool      `json:"dry_run"`

	TotalBytes    uint64 `json:"total_bytes"`
	FreeBefore    uint64 `json:"free_before"`
	FreeAfter     uint64 `json:"free_after"`
	ProjectedFree uint64 `json:"projected_free"`
	RequiredFree  uint64 `json:"required_free"`

	Outcome          Outcome         `json:"outcome"`
	Evicted          []EvictedObject `json:"evicted"`
	BytesReclaimed   uint64          `json:"bytes_reclaimed"`
	DeletionFailures int             `json:"deletion_failures"`
	Anomalies        []Anomaly       `json:"anomalies"`
	CapReached       bool            `json:"cap_reached"`
	Skipped          bool            `json:"skipped"`

	// ManifestPath is the archive manifest written for this run, if any.
	ManifestPath string `json:"manifest_path,omitempty"`

	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// EvictedCount returns the number of evicted objects.
func (e *Event) EvictedCount() int {
	return len(e.Evicted)
}

// AnomalyCount returns the number of anomalies of the given kind, or of all
// kinds when kind is empty.
func (e *Event) AnomalyCount(kind AnomalyKind) int {
	if kind == "" {
		return len(e.Anomalies)
	}
	n := 0
	for _, a := range e.Anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// JournalEntry converts the event to its journal row.
func (e *Event) JournalEntry() *journal.Entry {
	return &journal.Entry{
		RunID:            e.RunID,
		StartedAt:        e.TriggeredAt,
		Duration:         e.Duration,
		Root:             e.Root,
		Threshold:        e.Threshold,
		Outcome:          string(e.Outcome),
		DryRun:           e.DryRun,
		TotalBytes:       e.TotalBytes,
		FreeBefore:       e.FreeBefore,
		FreeAfter:        e.FreeAfter,
		RequiredFree:     e.RequiredFree,
		Evicted:          len(e.Evicted),
		BytesReclaimed:   e.BytesReclaimed,
		DeletionFailures: e.DeletionFailures,
		Anomalies:        len(e.Anomalies),
		CapReached:       e.CapReached,
		Error:            e.Error,
	}
}
