package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 25 * time.Millisecond
)

// sqliteCode extracts the primary SQLite result code from err, or -1 when
// err did not originate in the driver.
func sqliteCode(err error) int {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return -1
	}
	// Extended codes carry the primary code in the low byte
	// (e.g. SQLITE_CONSTRAINT_FOREIGNKEY -> SQLITE_CONSTRAINT).
	return se.Code() & 0xff
}

// mapSQLiteErr translates driver errors into the storage taxonomy while
// preserving the original error for logs.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	switch sqliteCode(err) {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", ErrBusy, err)
	case sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	default:
		return err
	}
}

// WithRetry executes fn, retrying up to maxRetries times on writer lock
// contention. Retries use jittered exponential backoff starting at
// baseDelay; after the last attempt the ErrBusy is returned to the caller,
// who may retry the whole operation.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := range maxRetries + 1 {
		err = fn()
		if err == nil || !errors.Is(err, ErrBusy) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}
