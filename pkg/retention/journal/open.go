package journal

import (
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the journal backend named by backend. A nil SQLiteConfig
// uses DefaultSQLiteConfig.
func Open(backend string, sqlite *SQLiteConfig) (Journal, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteJournal(sqlite)
	case BackendMemory:
		return NewMemoryJournal(), nil
	default:
		return nil, NewStorageError(backend, "open", fmt.Errorf("unknown journal backend %q", backend))
	}
}
