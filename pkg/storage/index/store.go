package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dcmnode/dcmprune/pkg/storage/lock"
)

const (
	// DefaultName is the catalog file name inside an AE directory.
	DefaultName = "index.jsonl"

	// LockSuffix is appended to the catalog path to form its lock file.
	LockSuffix = ".lock"

	// QuarantineSuffix prefixes the timestamp of a catalog moved aside.
	QuarantineSuffix = ".corrupt-"

	// DefaultLockTimeout bounds how long an update waits for the storage
	// service to release the catalog.
	DefaultLockTimeout = 30 * time.Second
)

// Store is the data-access component for one catalog file.
type Store struct {
	path        string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewStore returns a Store for the catalog at path.
func NewStore(path string) *Store {
	return &Store{
		path:        path,
		lockTimeout: DefaultLockTimeout,
		logger:      slog.Default().With("component", "storage.index", "index_path", path),
	}
}

// WithLockTimeout sets how long Update waits for the catalog lock.
func (s *Store) WithLockTimeout(d time.Duration) *Store {
	if d > 0 {
		s.lockTimeout = d
	}
	return s
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the advisory lock file shared with the storage service.
func (s *Store) LockPath() string {
	return s.path + LockSuffix
}

// Load reads the catalog without locking. A missing catalog is empty.
// Parse failures are returned as *CorruptError.
func (s *Store) Load() ([]Entry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", s.path, err)
	}
	defer f.Close()

	entries, err := Decode(f)
	if err != nil {
		var ce *CorruptError
		if errors.As(err, &ce) {
			ce.Path = s.path
		}
		return nil, err
	}
	return entries, nil
}

// Update locks the catalog, re-reads it, passes the current entries to fn
// and atomically replaces the catalog with the result. A corrupt catalog is
// reported without calling fn.
func (s *Store) Update(ctx context.Context, fn func(current []Entry) ([]Entry, error)) error {
	l, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer l.Release()

	current, err := s.Load()
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	return s.writeAtomic(next)
}

// Rebuild moves a corrupt catalog aside and writes entries as its
// replacement, holding the lock across both steps. It returns the path the
// old catalog was moved to, or "" when there was none.
func (s *Store) Rebuild(ctx context.Context, entries []Entry, now time.Time) (string, error) {
	l, err := s.lock(ctx)
	if err != nil {
		return "", err
	}
	defer l.Release()

	moved, err := s.quarantine(now)
	if err != nil {
		return "", err
	}

	if err := s.writeAtomic(entries); err != nil {
		return moved, err
	}
	return moved, nil
}

func (s *Store) lock(ctx context.Context) (*lock.Lock, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	l, err := lock.Acquire(ctx, s.LockPath(), lock.DefaultPollInterval)
	if err != nil {
		return nil, fmt.Errorf("lock index %s: %w", s.path, err)
	}
	return l, nil
}

func (s *Store) quarantine(now time.Time) (string, error) {
	dest := s.path + QuarantineSuffix + strconv.FormatInt(now.Unix(), 10)
	if err := os.Rename(s.path, dest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("quarantine index %s: %w", s.path, err)
	}

	s.logger.Warn("corrupt index moved aside", "quarantine_path", dest)
	return dest, nil
}

// writeAtomic writes entries to a temp file beside the catalog, syncs it and
// renames it over the catalog.
func (s *Store) writeAtomic(entries []Entry) error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := Encode(tmp, entries); err != nil {
		return fmt.Errorf("write temp index %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp index %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp index %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace index %s: %w", s.path, err)
	}
	committed = true

	// Persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}

	s.logger.Debug("index rewritten", "entries", len(entries))
	return nil
}
