package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestTryAcquire_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	first, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire() failed: %v", err)
	}
	defer first.Release()

	second, err := TryAcquire(path)
	if !errors.Is(err, ErrLocked) {
		if second != nil {
			second.Release()
		}
		t.Fatalf("second TryAcquire() error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	third, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire() after release failed: %v", err)
	}
	third.Release()
}

func TestTryAcquire_WritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	l, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire() failed: %v", err)
	}
	defer l.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file contents = %q, want pid %d", got, os.Getpid())
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	l, err := TryAcquire(filepath.Join(t.TempDir(), "run.lock"))
	if err != nil {
		t.Fatalf("TryAcquire() failed: %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("first Release() failed: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() = %v, want nil", err)
	}
}

func TestTryAcquire_MissingDirectory(t *testing.T) {
	_, err := TryAcquire(filepath.Join(t.TempDir(), "missing", "run.lock"))
	if err == nil {
		t.Fatal("expected error for lock in missing directory")
	}
	if errors.Is(err, ErrLocked) {
		t.Error("missing directory must not be reported as contention")
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")

	held, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire() failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		held.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, err := Acquire(ctx, path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	l.Release()
}

func TestAcquire_ContextTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")

	held, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire() failed: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, path, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want deadline exceeded", err)
	}
}
