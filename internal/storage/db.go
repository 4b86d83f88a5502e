// Package storage provides the embedded SQLite storage layer for the
// reasoning bank.
//
// It owns the schema (runs, trajectories, judgments, memory_items,
// usage_records plus an optional FTS5 index), the migration runner, and
// query methods for all tables. The store is a single file: concurrent
// readers are served from WAL snapshots, writers serialize on the SQLite
// write lock, and every mutating operation runs inside its own
// transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"
)

// DB wraps the single pooled SQLite connection.
//
// MaxOpenConns is pinned to 1: with WAL mode a single connection is optimal
// in-process, and cross-process concurrency is handled by SQLite's own file
// locking plus the busy_timeout pragma.
type DB struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	fts    bool
}

// Open opens or creates the backing file at path, creating parent
// directories as needed. It fails with a wrapped ErrStorage if the path is
// not writable or the file is not a usable SQLite database.
// defaultBusyTimeout is how long a writer waits for the lock before the
// driver reports SQLITE_BUSY.
const defaultBusyTimeout = 5 * time.Second

func Open(path string, logger *slog.Logger) (*DB, error) {
	return OpenTimeout(path, defaultBusyTimeout, logger)
}

// OpenTimeout is Open with an explicit busy timeout, for callers that
// configure it.
func OpenTimeout(path string, busyTimeout time.Duration, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory %s: %w (%w)", dir, err, ErrStorage)
		}
	}

	// Pragmas, via DSN so they apply to every connection:
	//   - busy_timeout: writers wait for the lock instead of failing instantly.
	//   - journal_mode WAL: concurrent readers don't block on the writer.
	//   - foreign_keys on: the provenance chain is enforced by the engine too,
	//     not only by the explicit existence checks.
	//   - _txlock=immediate: write transactions take the lock at BEGIN, so
	//     busy errors surface at the start of a transaction, never mid-way.
	dsn := "file:" + url.PathEscape(path) +
		"?_txlock=immediate" +
		fmt.Sprintf("&_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()) +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w (%w)", path, err, ErrStorage)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &DB{db: sqlDB, path: path, logger: logger}

	// A corrupt or non-SQLite file surfaces on the first real statement,
	// not at sql.Open. Probe the schema table so Open fails eagerly.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := sqlDB.ExecContext(ctx, `SELECT count(*) FROM sqlite_master`); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("storage: verify %s: %w (%w)", path, err, ErrStorage)
	}

	db.fts = db.probeFTS(ctx)
	return db, nil
}

// Path returns the backing file path.
func (db *DB) Path() string {
	return db.path
}

// HasFTS reports whether the runtime's SQLite build supports FTS5. The
// retrieval engine uses this to pick its ranking strategy at open time.
func (db *DB) HasFTS() bool {
	return db.fts
}

// Close releases the underlying connection. Safe to call once on every
// exit path.
func (db *DB) Close() error {
	return db.db.Close()
}

// probeFTS checks for the fts5 module by creating and dropping a throwaway
// virtual table. Some SQLite builds omit the module entirely, in which case
// retrieval falls back to term-overlap scoring.
func (db *DB) probeFTS(ctx context.Context) bool {
	if _, err := db.db.ExecContext(ctx,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_probe USING fts5(probe)`); err != nil {
		db.logger.Info("storage: fts5 unavailable, retrieval will use overlap ranking", "error", err)
		return false
	}
	if _, err := db.db.ExecContext(ctx, `DROP TABLE IF EXISTS fts_probe`); err != nil {
		db.logger.Warn("storage: drop fts probe table", "error", err)
	}
	return true
}

// writeTx runs fn inside an immediate transaction, retrying on transient
// lock contention. On any error the transaction is rolled back, so a failed
// operation leaves no partial rows.
func (db *DB) writeTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return WithRetry(ctx, defaultMaxRetries, defaultBaseDelay, func() error {
		tx, err := db.db.BeginTx(ctx, nil)
		if err != nil {
			return mapSQLiteErr(err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return mapSQLiteErr(err)
		}
		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			return mapSQLiteErr(err)
		}
		return nil
	})
}

// formatTime renders t for storage. All timestamps are stored as UTC
// RFC 3339 strings so files are portable across machines and drivers.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime is the inverse of formatTime.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: parse timestamp %q: %w", s, err)
	}
	return t, nil
}
