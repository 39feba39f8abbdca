package retention

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dcmnode/dcmprune/pkg/storage/diskspace"
	"dcmnode/dcmprune/pkg/storage/index"
	"dcmnode/dcmprune/pkg/storage/layout"
)

const mb = 1 << 20

// fixture is a storage root on a simulated filesystem. Free space is
// total minus base minus the logical size of every object under the root,
// so deleting a file frees exactly its size. Object files are sparse.
type fixture struct {
	t       *testing.T
	root    string
	total   uint64
	base    uint64
	now     time.Time
	entries map[string][]index.Entry
	nextID  int
	logs    bytes.Buffer
}

type object struct {
	ae        string
	rel       string
	size      int64
	received  time.Time // zero: no index entry
	mtime     time.Time // zero: same as received, or a day before now
	studyDate string
}

func newFixture(t *testing.T, total uint64) *fixture {
	t.Helper()
	return &fixture{
		t:       t,
		root:    t.TempDir(),
		total:   total,
		now:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		entries: make(map[string][]index.Entry),
	}
}

// daysAgo returns a time d days before the fixture clock.
func (f *fixture) daysAgo(d int) time.Time {
	return f.now.AddDate(0, 0, -d)
}

func (f *fixture) add(o object) index.Entry {
	f.t.Helper()

	p := filepath.Join(f.root, o.ae, filepath.FromSlash(o.rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		f.t.Fatal(err)
	}
	file, err := os.Create(p)
	if err != nil {
		f.t.Fatal(err)
	}
	if err := file.Truncate(o.size); err != nil {
		f.t.Fatal(err)
	}
	file.Close()

	mtime := o.mtime
	if mtime.IsZero() {
		mtime = o.received
	}
	if mtime.IsZero() {
		mtime = f.daysAgo(1)
	}
	if err := os.Chtimes(p, mtime, mtime); err != nil {
		f.t.Fatal(err)
	}

	if o.received.IsZero() {
		return index.Entry{}
	}

	f.nextID++
	e := index.Entry{
		ObjectID:   fmt.Sprintf("1.2.826.0.1.3680043.%d", f.nextID),
		StudyDate:  o.studyDate,
		ReceivedAt: o.received,
		Size:       o.size,
		Path:       o.rel,
	}
	f.entries[o.ae] = append(f.entries[o.ae], e)
	return e
}

// addEntry catalogues an object without creating its file.
func (f *fixture) addEntry(ae string, e index.Entry) {
	f.entries[ae] = append(f.entries[ae], e)
}

func (f *fixture) writeIndexes() {
	f.t.Helper()
	for ae, entries := range f.entries {
		path := filepath.Join(f.root, ae, index.DefaultName)
		var buf bytes.Buffer
		if err := index.Encode(&buf, entries); err != nil {
			f.t.Fatal(err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			f.t.Fatal(err)
		}
	}
}

// setFree adjusts the simulated filesystem so free space is exactly free.
func (f *fixture) setFree(free uint64) {
	f.base = f.total - free - f.used()
}

func (f *fixture) used() uint64 {
	var used uint64
	filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, index.DefaultName) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			used += uint64(info.Size())
		}
		return nil
	})
	return used
}

func (f *fixture) free() uint64 {
	return f.total - f.base - f.used()
}

// probeFunc adapts a function to diskspace.Probe.
type probeFunc func(path string) (diskspace.Usage, error)

func (fn probeFunc) Measure(path string) (diskspace.Usage, error) {
	return fn(path)
}

func (f *fixture) probe() diskspace.Probe {
	return probeFunc(func(path string) (diskspace.Usage, error) {
		return diskspace.Usage{Total: f.total, Free: f.free()}, nil
	})
}

func (f *fixture) pruner(mutate func(*Config), opts ...Option) *Pruner {
	return f.prunerFor(&layout.Layout{Root: f.root}, mutate, opts...)
}

func (f *fixture) prunerFor(l *layout.Layout, mutate func(*Config), opts ...Option) *Pruner {
	cfg := DefaultConfig()
	cfg.MaxDeletions = 0
	cfg.IndexLockTimeout = time.Second
	if mutate != nil {
		mutate(cfg)
	}

	all := []Option{
		WithProbe(f.probe()),
		WithLogger(slog.New(slog.NewTextHandler(&f.logs, nil))),
		WithClock(func() time.Time { return f.now }),
	}
	return NewPruner(l, cfg, append(all, opts...)...)
}

func (f *fixture) loadIndex(ae string) []index.Entry {
	f.t.Helper()
	entries, err := index.NewStore(filepath.Join(f.root, ae, index.DefaultName)).Load()
	if err != nil {
		f.t.Fatalf("load index of %s: %v", ae, err)
	}
	return entries
}

func (f *fixture) exists(ae, rel string) bool {
	_, err := os.Stat(filepath.Join(f.root, ae, filepath.FromSlash(rel)))
	return err == nil
}

// assertConsistent checks that every entry has a file and every file that
// is not in progress has an entry.
func (f *fixture) assertConsistent() {
	f.t.Helper()

	l := &layout.Layout{Root: f.root}
	dirs, err := l.AEDirs()
	if err != nil {
		f.t.Fatal(err)
	}

	for _, ae := range dirs {
		entries := f.loadIndex(ae.Title)
		paths := make(map[string]bool, len(entries))
		for _, e := range entries {
			paths[e.Path] = true
			if !f.exists(ae.Title, e.Path) {
				f.t.Errorf("%s: index entry %s has no file", ae.Title, e.Path)
			}
		}

		objects, err := l.Scan(context.Background(), ae)
		if err != nil {
			f.t.Fatal(err)
		}
		for _, o := range objects {
			if !o.InProgress && !paths[o.RelPath] {
				f.t.Errorf("%s: file %s has no index entry", ae.Title, o.RelPath)
			}
		}
	}
}

// hasAnomaly reports whether ev carries an anomaly of kind whose detail
// contains substr.
func hasAnomaly(ev *Event, kind AnomalyKind, substr string) bool {
	for _, a := range ev.Anomalies {
		if a.Kind == kind && strings.Contains(a.Detail, substr) {
			return true
		}
	}
	return false
}

// scenario builds the five-object AE from the reference scenario: sizes
// 10..50 MB, oldest first, 100 MB free of 1000 MB.
func scenario(t *testing.T) *fixture {
	f := newFixture(t, 1000*mb)
	for i, size := range []int64{10, 20, 30, 40, 50} {
		f.add(object{
			ae:       "DCMTK_STR_SCP",
			rel:      fmt.Sprintf("1.2.3.%d/%d.dcm", i, size),
			size:     size * mb,
			received: f.daysAgo(50 - i),
		})
	}
	f.writeIndexes()
	f.setFree(100 * mb)
	return f
}
