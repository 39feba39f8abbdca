package retention

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"dcmnode/dcmprune/pkg/storage/diskspace"
	"dcmnode/dcmprune/pkg/storage/lock"
)

// AEStatus summarises one AE directory.
type AEStatus struct {
	Title          string `json:"ae_title"`
	Path           string `json:"path"`
	IndexPath      string `json:"index_path,omitempty"`
	Entries        int    `json:"entries"`
	Files          int    `json:"files"`
	Bytes          int64  `json:"bytes"`
	InProgress     int    `json:"in_progress"`
	Orphans        int    `json:"orphans"`
	YoungUnindexed int    `json:"young_unindexed"`
	Stale          int    `json:"stale"`
	IndexCorrupt   bool   `json:"index_corrupt"`
	IndexError     string `json:"index_error,omitempty"`
}

// Consistent reports whether the catalog and the files match.
func (s AEStatus) Consistent() bool {
	return s.IndexError == "" && s.Orphans == 0 && s.Stale == 0
}

// Status is a read-only report on the storage root.
type Status struct {
	Root         string          `json:"root"`
	Threshold    string          `json:"threshold"`
	AgeKey       AgeKey          `json:"age_key"`
	Usage        diskspace.Usage `json:"usage"`
	RequiredFree uint64          `json:"required_free"`
	Satisfied    bool            `json:"satisfied"`
	LockHeld     bool            `json:"lock_held"`
	AEs          []AEStatus      `json:"ae_dirs"`

	// Next lists the first objects a run would evict, oldest first.
	Next []EvictedObject `json:"next"`
}

// Inspect measures the storage root and compares every catalog with the
// files on disk. It deletes and rewrites nothing. next bounds Status.Next.
func (p *Pruner) Inspect(ctx context.Context, next int) (*Status, error) {
	l, cfg := p.Config()

	if err := l.CheckRoot(); err != nil {
		return nil, NewStorageUnavailableError(l.Root, "stat", err)
	}

	usage, err := p.probe.Measure(l.Root)
	if err != nil {
		return nil, NewStorageUnavailableError(l.Root, "statfs", err)
	}

	st := &Status{
		Root:         l.Root,
		Threshold:    cfg.Threshold.String(),
		AgeKey:       cfg.AgeKey,
		Usage:        usage,
		RequiredFree: cfg.Threshold.Required(usage.Total),
		Satisfied:    cfg.Threshold.Satisfied(usage),
		LockHeld:     lockHeld(cfg.lockPath(l.Root)),
		AEs:          []AEStatus{},
		Next:         []EvictedObject{},
	}

	states, err := p.survey(ctx, l, cfg, p.now())
	if err != nil {
		return nil, err
	}

	for _, s := range states {
		as := AEStatus{
			Title:          s.ae.Title,
			Path:           s.ae.Path,
			Entries:        len(s.entries),
			Files:          len(s.objects),
			Bytes:          s.bytes,
			InProgress:     s.inProgress,
			Orphans:        len(s.orphans),
			YoungUnindexed: s.young,
			Stale:          len(s.stale),
			IndexCorrupt:   s.corrupt,
		}
		if s.store != nil {
			as.IndexPath = s.store.Path()
		}
		if s.loadErr != nil {
			as.IndexError = s.loadErr.Error()
		}
		st.AEs = append(st.AEs, as)
	}

	for i, c := range orderCandidates(states) {
		if i >= next {
			break
		}
		st.Next = append(st.Next, evictedObject(c))
	}

	return st, nil
}

// lockHeld reports whether a run currently holds the lock. A missing lock
// file is not created.
func lockHeld(path string) bool {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false
	}

	l, err := lock.TryAcquire(path)
	if err != nil {
		return errors.Is(err, lock.ErrLocked)
	}
	l.Release()
	return false
}
