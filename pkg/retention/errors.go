package retention

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable matches every StorageUnavailableError.
var ErrStorageUnavailable = errors.New("storage unavailable")

// StorageUnavailableError means the storage root is missing or unreadable,
// or its free space cannot be measured. The run aborts with nothing
// deleted.
type StorageUnavailableError struct {
	Root  string // Storage root
	Op    string // "stat", "statfs", "list"
	Cause error  // Underlying error
}

// Error implements the error interface.
func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable [root=%s, op=%s]: %v", e.Root, e.Op, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// Is reports ErrStorageUnavailable as a match.
func (e *StorageUnavailableError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// NewStorageUnavailableError creates a new StorageUnavailableError.
func NewStorageUnavailableError(root, op string, cause error) *StorageUnavailableError {
	return &StorageUnavailableError{
		Root:  root,
		Op:    op,
		Cause: cause,
	}
}

// IndexInconsistentError describes a mismatch between an AE index and the
// files on disk. It is recovered locally and reported as an anomaly.
type IndexInconsistentError struct {
	AETitle string // AE directory
	Path    string // Object path relative to the AE directory, if any
	Reason  string // What does not match
	Cause   error  // Underlying error, if any
}

// Error implements the error interface.
func (e *IndexInconsistentError) Error() string {
	msg := fmt.Sprintf("index inconsistent [ae=%s", e.AETitle)
	if e.Path != "" {
		msg += ", path=" + e.Path
	}
	msg += "]: " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *IndexInconsistentError) Unwrap() error {
	return e.Cause
}

// DeletionFailedError is one object that could not be removed. Its index
// entry is kept and the run continues.
type DeletionFailedError struct {
	AETitle string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *DeletionFailedError) Error() string {
	return fmt.Sprintf("deletion failed [ae=%s, path=%s]: %v", e.AETitle, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DeletionFailedError) Unwrap() error {
	return e.Cause
}
