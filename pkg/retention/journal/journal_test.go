package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTempDB creates a temporary SQLite journal for testing.
func createTempDB(t *testing.T, driver string) (*SQLiteJournal, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journal.db")

	config := &SQLiteConfig{
		Path:         dbPath,
		Driver:       driver,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}

	j, err := NewSQLiteJournal(config)
	if err != nil {
		t.Fatalf("Failed to create SQLite journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	return j, dbPath
}

func sampleRuns(base time.Time) []*Entry {
	return []*Entry{
		{RunID: "run-1", StartedAt: base, Outcome: "noop", Root: "/data", Threshold: "10%", TotalBytes: 1000, FreeBefore: 500, FreeAfter: 500, RequiredFree: 100},
		{RunID: "run-2", StartedAt: base.Add(time.Hour), Outcome: "satisfied", Root: "/data", Threshold: "10%", Evicted: 3, BytesReclaimed: 60 << 20, Duration: 1500 * time.Millisecond},
		{RunID: "run-3", StartedAt: base.Add(2 * time.Hour), Outcome: "failed", Root: "/data", Threshold: "10%", Error: "statfs /data: no such file or directory"},
		{RunID: "run-4", StartedAt: base.Add(3 * time.Hour), Outcome: "cap_reached", Root: "/data", Threshold: "10%", Evicted: 10, CapReached: true, DeletionFailures: 1, Anomalies: 2},
	}
}

// journalsUnderTest returns every backend so behavior is checked once for all.
func journalsUnderTest(t *testing.T) map[string]Journal {
	t.Helper()

	modernc, _ := createTempDB(t, DriverModernc)
	mattn, _ := createTempDB(t, DriverMattn)

	return map[string]Journal{
		"memory":         NewMemoryJournal(),
		"sqlite-modernc": modernc,
		"sqlite-mattn":   mattn,
	}
}

func TestJournal_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, j := range journalsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for _, e := range sampleRuns(base) {
				if err := j.Record(ctx, e); err != nil {
					t.Fatalf("Record() failed: %v", err)
				}
			}

			all, err := j.Query(ctx, &Query{})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(all) != 4 {
				t.Fatalf("expected 4 entries, got %d", len(all))
			}
			if all[0].RunID != "run-4" || all[3].RunID != "run-1" {
				t.Errorf("expected newest first, got %s..%s", all[0].RunID, all[3].RunID)
			}

			got := all[2]
			if got.Evicted != 3 || got.BytesReclaimed != 60<<20 || got.Duration != 1500*time.Millisecond {
				t.Errorf("run-2 round trip mismatch: %+v", got)
			}
			if !got.StartedAt.Equal(base.Add(time.Hour)) {
				t.Errorf("StartedAt = %v, want %v", got.StartedAt, base.Add(time.Hour))
			}
			if !all[0].CapReached || all[0].Anomalies != 2 {
				t.Errorf("run-4 round trip mismatch: %+v", all[0])
			}
			if all[1].Error == "" {
				t.Error("error text of failed run lost")
			}
		})
	}
}

func TestJournal_QueryFilters(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	since := base.Add(time.Hour)
	until := base.Add(2 * time.Hour)

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "outcome", query: Query{Outcome: "failed"}, want: []string{"run-3"}},
		{name: "since", query: Query{Since: &since}, want: []string{"run-4", "run-3", "run-2"}},
		{name: "window", query: Query{Since: &since, Until: &until}, want: []string{"run-3", "run-2"}},
		{name: "limit", query: Query{Limit: 2}, want: []string{"run-4", "run-3"}},
		{name: "offset", query: Query{Limit: 2, Offset: 3}, want: []string{"run-1"}},
		{name: "offset past end", query: Query{Offset: 10}, want: nil},
	}

	for name, j := range journalsUnderTest(t) {
		for _, e := range sampleRuns(base) {
			if err := j.Record(ctx, e); err != nil {
				t.Fatalf("%s: Record() failed: %v", name, err)
			}
		}

		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				q := tt.query
				got, err := j.Query(ctx, &q)
				if err != nil {
					t.Fatalf("Query() failed: %v", err)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
				}
				for i, id := range tt.want {
					if got[i].RunID != id {
						t.Errorf("entry %d = %s, want %s", i, got[i].RunID, id)
					}
				}
			})
		}

		count, err := j.Count(ctx, &Query{Since: &since, Limit: 1})
		if err != nil {
			t.Fatalf("%s: Count() failed: %v", name, err)
		}
		if count != 3 {
			t.Errorf("%s: Count() = %d, want 3 (limit ignored)", name, count)
		}
	}
}

func TestJournal_InvalidQuery(t *testing.T) {
	ctx := context.Background()
	since := time.Now()
	until := since.Add(-time.Hour)

	for name, j := range journalsUnderTest(t) {
		_, err := j.Query(ctx, &Query{Since: &since, Until: &until})
		var se *StorageError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected StorageError for inverted window, got %v", name, err)
		}
	}
}

func TestJournal_Prune(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, j := range journalsUnderTest(t) {
		for _, e := range sampleRuns(base) {
			if err := j.Record(ctx, e); err != nil {
				t.Fatalf("%s: Record() failed: %v", name, err)
			}
		}

		removed, err := j.Prune(ctx, base.Add(90*time.Minute))
		if err != nil {
			t.Fatalf("%s: Prune() failed: %v", name, err)
		}
		if removed != 2 {
			t.Errorf("%s: Prune() removed %d, want 2", name, removed)
		}

		if n, _ := j.Count(ctx, &Query{}); n != 2 {
			t.Errorf("%s: %d entries left, want 2", name, n)
		}
	}
}

func TestSQLiteJournal_MaxAgeOnOpen(t *testing.T) {
	ctx := context.Background()
	j, dbPath := createTempDB(t, DriverModernc)

	now := time.Now()
	for _, e := range []*Entry{
		{RunID: "old", StartedAt: now.Add(-48 * time.Hour), Outcome: "noop"},
		{RunID: "fresh", StartedAt: now.Add(-time.Hour), Outcome: "noop"},
	} {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", e.RunID, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := NewSQLiteJournal(&SQLiteConfig{
		Path:        dbPath,
		Driver:      DriverModernc,
		BusyTimeout: 5 * time.Second,
		MaxAge:      24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.Query(ctx, &Query{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "fresh" {
		t.Errorf("expected only the fresh entry after reopening, got %+v", entries)
	}
}

func TestSQLiteJournal_MaxAgeOnRecord(t *testing.T) {
	ctx := context.Background()
	j, _ := createTempDB(t, DriverModernc)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	j.config.MaxAge = 24 * time.Hour
	j.now = func() time.Time { return now }

	old := &Entry{RunID: "old", StartedAt: now.Add(-48 * time.Hour), Outcome: "noop"}
	fresh := &Entry{RunID: "fresh", StartedAt: now.Add(-time.Hour), Outcome: "noop"}

	if err := j.Record(ctx, old); err != nil {
		t.Fatalf("Record(old) failed: %v", err)
	}
	if err := j.Record(ctx, fresh); err != nil {
		t.Fatalf("Record(fresh) failed: %v", err)
	}

	entries, err := j.Query(ctx, &Query{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "fresh" {
		t.Errorf("expected only the fresh entry to survive, got %+v", entries)
	}
}

func TestSQLiteJournal_Initialize(t *testing.T) {
	j, dbPath := createTempDB(t, DriverModernc)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	// Reopening an existing database keeps the schema version.
	j.Close()
	reopened, err := NewSQLiteJournal(&SQLiteConfig{Path: dbPath, Driver: DriverMattn, WALMode: true, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("reopen with the other driver failed: %v", err)
	}
	reopened.Close()
}

func TestSQLiteJournal_DuplicateRunID(t *testing.T) {
	ctx := context.Background()
	j, _ := createTempDB(t, DriverModernc)

	e := &Entry{RunID: "dup", StartedAt: time.Now(), Outcome: "noop"}
	if err := j.Record(ctx, e); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	err := j.Record(ctx, e)
	var se *StorageError
	if !errors.As(err, &se) || se.Operation != "record" {
		t.Errorf("expected record StorageError for duplicate run id, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	j, err := Open(BackendMemory, nil)
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if _, ok := j.(*MemoryJournal); !ok {
		t.Errorf("Open(memory) returned %T", j)
	}

	j, err = Open(BackendSQLite, &SQLiteConfig{Path: filepath.Join(t.TempDir(), "j.db")})
	if err != nil {
		t.Fatalf("Open(sqlite) failed: %v", err)
	}
	j.Close()

	if _, err := Open("postgres", nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSQLiteConfig_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteJournal(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "j.db"), Driver: "pgx"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
