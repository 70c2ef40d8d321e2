package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTask is returned for empty or whitespace-only task text.
	ErrInvalidTask = errors.New("invalid task: text required")

	// ErrNotFound is returned when an operation references a task absent from the current snapshot.
	ErrNotFound = errors.New("not found")

	// ErrDetached is returned by every operation after the controller has been detached.
	ErrDetached = errors.New("detached")

	// ErrUnattached is returned by mutations issued before the first snapshot arrived.
	ErrUnattached = errors.New("no snapshot yet")
)

// StoreError wraps a failure reported by a SyncedStore.
// The underlying reason is opaque to the controller.
type StoreError struct {
	Op     string
	ListID string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.ListID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err wraps a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
