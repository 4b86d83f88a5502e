// Package testutil provides shared test infrastructure: a migrated
// throwaway store per test and a quiet logger.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.OpenDB(t)
//	    ...
//	}
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noetic-dev/reasoningbank/internal/storage"
	"github.com/noetic-dev/reasoningbank/migrations"
)

// OpenDB opens a fresh store under t.TempDir(), runs all migrations, and
// registers cleanup. Each call gets its own backing file, so tests never
// share state.
func OpenDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "bank.db"), Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS))
	return db
}

// Logger returns a logger configured for test output (warns only).
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
