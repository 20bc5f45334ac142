package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSnapshotMissing means no snapshot exists for the requested key
	ErrSnapshotMissing = errors.New("snapshot not found")

	// ErrObjectNotFound is returned by ObjectStore.Get for absent keys
	ErrObjectNotFound = errors.New("object not found")
)

// StorageWriteError reports a failed upload
type StorageWriteError struct {
	Backend string
	Package string
	Commit  string
	Err     error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to store snapshot %s@%s on %s: %v", e.Package, e.Commit, e.Backend, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// StorageReadError reports a failed or corrupt download
type StorageReadError struct {
	Backend string
	Key     string
	Err     error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("failed to read %s from %s: %v", e.Key, e.Backend, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// BackendFailure is the final error one backend returned
type BackendFailure struct {
	Backend string
	Err     error
}

// AllBackendsFailedError is returned when no backend could serve an
// operation
type AllBackendsFailedError struct {
	Operation string
	Failures  []BackendFailure
}

func (e *AllBackendsFailedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s failed: no storage backends configured", e.Operation)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Backend, f.Err))
	}
	return fmt.Sprintf("%s failed on all %d backends (%s)", e.Operation, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every backend cause to errors.Is and errors.As
func (e *AllBackendsFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// ErrBackendUnhealthy marks a backend skipped because its last probe failed
var ErrBackendUnhealthy = errors.New("backend unhealthy")
