// Package lock provides advisory exclusive file locks backed by flock(2).
//
// Locks are scoped to an open file description, so two TryAcquire calls on
// the same path conflict even inside one process. The lock file is never
// removed; unlinking a lock file while another process waits on it would
// let two holders coexist.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ErrLocked is returned when the lock is held by someone else.
var ErrLocked = errors.New("lock is held by another process")

// DefaultPollInterval is how often Acquire retries a contended lock.
const DefaultPollInterval = 50 * time.Millisecond

// Lock is a held exclusive lock. Release it on every exit path.
type Lock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// TryAcquire takes the lock at path without blocking. It returns ErrLocked
// when another holder has it.
func TryAcquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := flock(f); err != nil {
		f.Close()
		return nil, err
	}

	// Holder pid is informational only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{path: path, file: f}, nil
}

// Acquire retries TryAcquire until it succeeds, fails with an error other
// than ErrLocked, or ctx is done.
func Acquire(ctx context.Context, path string, poll time.Duration) (*Lock, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		l, err := TryAcquire(path)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := funlock(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
