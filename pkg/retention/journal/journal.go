package journal

import (
	"context"
	"fmt"
	"time"
)

// Entry is the journaled summary of one retention run.
type Entry struct {
	RunID            string        `json:"run_id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
	Root             string        `json:"root"`
	Threshold        string        `json:"threshold"`
	Outcome          string        `json:"outcome"`
	DryRun           bool          `json:"dry_run"`
	TotalBytes       uint64        `json:"total_bytes"`
	FreeBefore       uint64        `json:"free_before"`
	FreeAfter        uint64        `json:"free_after"`
	RequiredFree     uint64        `json:"required_free"`
	Evicted          int           `json:"evicted"`
	BytesReclaimed   uint64        `json:"bytes_reclaimed"`
	DeletionFailures int           `json:"deletion_failures"`
	Anomalies        int           `json:"anomalies"`
	CapReached       bool          `json:"cap_reached"`
	Error            string        `json:"error,omitempty"`
}

// Query filters journal entries. Results are ordered newest first.
type Query struct {
	// Since and Until bound StartedAt, inclusive.
	Since *time.Time
	Until *time.Time

	// Outcome matches exactly when set.
	Outcome string

	// Limit caps the result size. Zero means DefaultQueryLimit.
	Limit int

	// Offset skips the first results.
	Offset int
}

// DefaultQueryLimit applies when Query.Limit is zero.
const DefaultQueryLimit = 100

// Validate checks the query for contradictory bounds.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	if q.Since != nil && q.Until != nil && q.Until.Before(*q.Since) {
		return fmt.Errorf("until %s is before since %s", q.Until.Format(time.RFC3339), q.Since.Format(time.RFC3339))
	}
	return nil
}

func (q *Query) limit() int {
	if q.Limit == 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

func (q *Query) matches(e *Entry) bool {
	if q.Since != nil && e.StartedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && e.StartedAt.After(*q.Until) {
		return false
	}
	if q.Outcome != "" && e.Outcome != q.Outcome {
		return false
	}
	return true
}

// Journal stores run summaries.
type Journal interface {
	// Record appends one run summary.
	Record(ctx context.Context, entry *Entry) error

	// Query returns entries matching q, newest first.
	Query(ctx context.Context, q *Query) ([]*Entry, error)

	// Count returns the number of entries matching q, ignoring Limit and
	// Offset.
	Count(ctx context.Context, q *Query) (int64, error)

	// Prune removes entries that started before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}

// StorageError represents an error from a journal backend.
type StorageError struct {
	Backend   string // "sqlite" or "memory"
	Operation string // operation that failed ("record", "query", ...)
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("journal error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
