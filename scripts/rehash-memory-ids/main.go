// Command rehash-memory-ids is a one-time maintenance script that
// recomputes the content-addressed id for every memory item. Run it after
// a change to the normalization algorithm, when stored ids may no longer
// match what the current hash would produce.
//
// Usage:
//
//	RB_DB_PATH=reasoningbank.db go run ./scripts/rehash-memory-ids
//
// For each item whose stored id differs from the recomputed one, the
// script rewrites the id and repoints usage records in the same
// transaction. When two items normalize to the same id under the current
// algorithm the second is left untouched and reported, since collapsing
// them would need a counter-merge policy a script should not invent.
//
// Safe to run multiple times. Once all ids match it reports 0 updates.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/noetic-dev/reasoningbank/internal/identity"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	path := os.Getenv("RB_DB_PATH")
	if path == "" {
		return fmt.Errorf("RB_DB_PATH is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("sqlite",
		"file:"+url.PathEscape(path)+"?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx,
		`SELECT id, title, content FROM memory_items ORDER BY created_at ASC`)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	type staleRow struct {
		oldID string
		newID string
	}

	var stale []staleRow
	var total int
	for rows.Next() {
		var id, title, content string
		if err := rows.Scan(&id, &title, &content); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		total++
		if expected := identity.MemoryID(title, content); expected != id {
			stale = append(stale, staleRow{oldID: id, newID: expected})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}

	var fixed, skipped int
	for _, row := range stale {
		var exists bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM memory_items WHERE id = ?)`, row.newID).Scan(&exists); err != nil {
			return fmt.Errorf("collision check %s: %w", row.oldID, err)
		}
		if exists {
			fmt.Printf("skip %s: %s already taken, merge by hand\n", row.oldID, row.newID)
			skipped++
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", row.oldID, err)
		}
		// Parent and child rows change in one transaction; deferring the
		// foreign-key check lets the id move without an orphan window.
		if _, err := tx.ExecContext(ctx, `PRAGMA defer_foreign_keys = ON`); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("defer fks %s: %w", row.oldID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE memory_items SET id = ? WHERE id = ?`, row.newID, row.oldID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update item %s: %w", row.oldID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE usage_records SET memory_id = ? WHERE memory_id = ?`, row.newID, row.oldID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update usage %s: %w", row.oldID, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", row.oldID, err)
		}
		fixed++
	}

	fmt.Printf("checked %d items: %d rewritten, %d skipped\n", total, fixed, skipped)
	return nil
}
