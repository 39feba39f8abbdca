package index

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dcmnode/dcmprune/pkg/storage/lock"
)

func sampleEntries() []Entry {
	received := time.Date(2024, 1, 17, 8, 12, 44, 0, time.UTC)
	return []Entry{
		{
			ObjectID:    "1.2.3.1",
			StudyUID:    "1.2.3",
			SeriesUID:   "1.2.3.0",
			InstanceUID: "1.2.3.1",
			StudyDate:   "20240115",
			ReceivedAt:  received,
			Size:        1024,
			Path:        "1.2.3/1.2.3.1.dcm",
		},
		{
			ObjectID:   "1.2.3.2",
			ReceivedAt: received.Add(time.Minute),
			Size:       2048,
			Path:       "1.2.3/1.2.3.2.dcm",
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleEntries()); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].StudyDate != "20240115" || !got[1].ReceivedAt.Equal(sampleEntries()[1].ReceivedAt) {
		t.Errorf("decoded entries differ: %+v", got)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{
			name:     "truncated json",
			input:    `{"object_id":"a","path":"a.dcm","received_at":"2024-01-01T00:00:00Z"}` + "\n" + `{"object_id":"b","pa`,
			wantLine: 2,
		},
		{
			name:     "missing object id",
			input:    `{"path":"a.dcm","received_at":"2024-01-01T00:00:00Z"}`,
			wantLine: 1,
		},
		{
			name:     "escaping path",
			input:    `{"object_id":"a","path":"../a.dcm","received_at":"2024-01-01T00:00:00Z"}`,
			wantLine: 1,
		},
		{
			name: "duplicate object id",
			input: `{"object_id":"a","path":"a.dcm","received_at":"2024-01-01T00:00:00Z"}` + "\n\n" +
				`{"object_id":"a","path":"b.dcm","received_at":"2024-01-01T00:00:00Z"}`,
			wantLine: 3,
		},
		{
			name: "duplicate path",
			input: `{"object_id":"a","path":"a.dcm","received_at":"2024-01-01T00:00:00Z"}` + "\n" +
				`{"object_id":"b","path":"a.dcm","received_at":"2024-01-01T00:00:00Z"}`,
			wantLine: 2,
		},
		{
			name:     "binary garbage",
			input:    "\x00\x01\x02DICM",
			wantLine: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Decode() error = %v, want ErrCorrupt", err)
			}
			var ce *CorruptError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *CorruptError, got %T", err)
			}
			if ce.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", ce.Line, tt.wantLine)
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	entries, err := Decode(strings.NewReader("\n  \n"))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestEntry_StudyTime(t *testing.T) {
	e := Entry{StudyDate: "20231231"}
	got, ok := e.StudyTime()
	if !ok || !got.Equal(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StudyTime() = %v, %v", got, ok)
	}

	for _, bad := range []string{"", "2023-12-31", "20231340"} {
		e := Entry{StudyDate: bad}
		if _, ok := e.StudyTime(); ok {
			t.Errorf("StudyTime() for %q should not be ok", bad)
		}
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), DefaultName))

	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for missing index, got %v", entries)
	}
}

func TestStore_LoadCorruptSetsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	if err := os.WriteFile(path, []byte("not json\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore(path).Load()
	var ce *CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("Load() error = %v, want *CorruptError", err)
	}
	if ce.Path != path {
		t.Errorf("Path = %q, want %q", ce.Path, path)
	}
}

func TestStore_Update(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, DefaultName))
	ctx := context.Background()

	err := store.Update(ctx, func(current []Entry) ([]Entry, error) {
		if len(current) != 0 {
			t.Errorf("expected empty index, got %d entries", len(current))
		}
		return sampleEntries(), nil
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	err = store.Update(ctx, func(current []Entry) ([]Entry, error) {
		return current[1:], nil
	})
	if err != nil {
		t.Fatalf("second Update() failed: %v", err)
	}

	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ObjectID != "1.2.3.2" {
		t.Errorf("unexpected entries after update: %+v", entries)
	}

	// No temp files may be left behind.
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestStore_UpdateErrorKeepsIndex(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), DefaultName))
	ctx := context.Background()

	if err := store.Update(ctx, func([]Entry) ([]Entry, error) { return sampleEntries(), nil }); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	boom := errors.New("boom")
	err := store.Update(ctx, func([]Entry) ([]Entry, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	entries, _ := store.Load()
	if len(entries) != 2 {
		t.Errorf("index changed after failed update: %d entries", len(entries))
	}
}

func TestStore_UpdateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	if err := os.WriteFile(path, []byte("{broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	called := false
	err := NewStore(path).Update(context.Background(), func(current []Entry) ([]Entry, error) {
		called = true
		return current, nil
	})
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Update() error = %v, want ErrCorrupt", err)
	}
	if called {
		t.Error("fn must not be called for a corrupt index")
	}
}

func TestStore_UpdateWaitsForLock(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), DefaultName)).WithLockTimeout(50 * time.Millisecond)

	held, err := lock.TryAcquire(store.LockPath())
	if err != nil {
		t.Fatalf("TryAcquire() failed: %v", err)
	}
	defer held.Release()

	err = store.Update(context.Background(), func(current []Entry) ([]Entry, error) {
		return current, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Update() error = %v, want deadline exceeded while storage service holds the lock", err)
	}
}

func TestStore_Rebuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultName)
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(1700000000, 0)
	moved, err := NewStore(path).Rebuild(context.Background(), sampleEntries(), now)
	if err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	wantMoved := path + ".corrupt-1700000000"
	if moved != wantMoved {
		t.Errorf("moved = %q, want %q", moved, wantMoved)
	}
	if data, err := os.ReadFile(moved); err != nil || string(data) != "garbage" {
		t.Errorf("quarantined index not preserved: %q, %v", data, err)
	}

	entries, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load() after rebuild failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 rebuilt entries, got %d", len(entries))
	}
}

func TestStore_RebuildMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)

	moved, err := NewStore(path).Rebuild(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}
	if moved != "" {
		t.Errorf("moved = %q, want empty for missing index", moved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("rebuilt index not written: %v", err)
	}
}
