package storage

import "errors"

// Sentinel errors for the storage layer. Callers match with errors.Is.
var (
	// ErrNotFound is returned when a referenced run, trajectory, or memory
	// does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrBusy is returned when writer lock contention persists past the
	// bounded retry loop. The operation had no effect and may be retried.
	ErrBusy = errors.New("storage: busy")

	// ErrSchema is returned when the store carries a schema version this
	// build does not know. There is no automatic downgrade.
	ErrSchema = errors.New("storage: unknown schema version")

	// ErrIntegrity is returned when a write violates a foreign-key
	// constraint directly against the store, bypassing normal call order.
	ErrIntegrity = errors.New("storage: integrity violation")

	// ErrStorage is returned when the backing file cannot be opened,
	// created, or read.
	ErrStorage = errors.New("storage: backing file unusable")
)
