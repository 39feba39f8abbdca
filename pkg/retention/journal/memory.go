package journal

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryJournal implements Journal in memory. Entries are lost on exit.
type MemoryJournal struct {
	entries []*Entry
	mu      sync.RWMutex
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Record stores a copy of entry.
func (m *MemoryJournal) Record(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryCopy := *entry
	m.entries = append(m.entries, &entryCopy)
	return nil
}

// Query returns copies of matching entries, newest first.
func (m *MemoryJournal) Query(ctx context.Context, q *Query) ([]*Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, NewStorageError("memory", "query", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*Entry
	for _, e := range m.entries {
		if q.matches(e) {
			entryCopy := *e
			results = append(results, &entryCopy)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})

	if q.Offset >= len(results) {
		return []*Entry{}, nil
	}
	results = results[q.Offset:]

	if limit := q.limit(); limit < len(results) {
		results = results[:limit]
	}

	return results, nil
}

// Count returns the number of matching entries.
func (m *MemoryJournal) Count(ctx context.Context, q *Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.entries {
		if q.matches(e) {
			n++
		}
	}
	return n, nil
}

// Prune drops entries that started before cutoff.
func (m *MemoryJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var removed int64
	for _, e := range m.entries {
		if e.StartedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

// Close is a no-op.
func (m *MemoryJournal) Close() error {
	return nil
}
