package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noetic-dev/reasoningbank/internal/identity"
	"github.com/noetic-dev/reasoningbank/internal/model"
)

// memoryColumns returns the memory_items select list qualified with alias.
func memoryColumns(alias string) string {
	return alias + ".id, " + alias + ".title, " + alias + ".content, " +
		alias + ".tags, " + alias + ".source_type, " + alias + ".domain, " +
		alias + ".created_at, " + alias + ".access_count, " +
		alias + ".success_count, " + alias + ".failure_count"
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMemory reads one memory_items row; extra receives any trailing
// columns (e.g. the BM25 rank in FTS queries).
func scanMemory(row rowScanner, extra ...any) (model.MemoryItem, error) {
	var (
		item      model.MemoryItem
		tagsJSON  string
		createdAt string
	)
	dest := []any{
		&item.ID, &item.Title, &item.Content, &tagsJSON, &item.SourceType,
		&item.Domain, &createdAt, &item.AccessCount, &item.SuccessCount,
		&item.FailureCount,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.MemoryItem{}, err
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
			return model.MemoryItem{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	ts, err := parseTime(createdAt)
	if err != nil {
		return model.MemoryItem{}, err
	}
	item.CreatedAt = ts
	return item, nil
}

// InsertMemory stores a distilled strategy. The id is computed here as the
// content hash of the normalized title and content; when an item with that
// id already exists the call is a no-op and returns created=false. This is
// the dedup contract: identical strategies collapse into one row no matter
// how many runs rediscover them.
//
// Counters always start at zero on insert, even if the caller supplied
// values (imported packs legitimately reset counters; see pack round-trip
// semantics).
func (db *DB) InsertMemory(ctx context.Context, item model.MemoryItem) (string, bool, error) {
	var (
		id      string
		created bool
	)
	err := db.writeTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, created, err = insertMemoryTx(ctx, tx, item)
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("storage: add memory: %w", err)
	}
	return id, created, nil
}

// InsertMemories stores a batch of strategies in a single transaction:
// either every new item lands or none do. Duplicates — against existing
// rows or earlier items in the same batch — are skipped, not errors.
func (db *DB) InsertMemories(ctx context.Context, items []model.MemoryItem) (inserted, skipped int, err error) {
	err = db.writeTx(ctx, func(tx *sql.Tx) error {
		inserted, skipped = 0, 0
		for _, item := range items {
			_, created, err := insertMemoryTx(ctx, tx, item)
			if err != nil {
				return err
			}
			if created {
				inserted++
			} else {
				skipped++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("storage: add memories: %w", err)
	}
	return inserted, skipped, nil
}

func insertMemoryTx(ctx context.Context, tx *sql.Tx, item model.MemoryItem) (string, bool, error) {
	if err := model.ValidateMemoryItem(item); err != nil {
		return "", false, err
	}
	id := identity.MemoryID(item.Title, item.Content)

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tagsJSON, err := json.Marshal(item.Tags)
	if err != nil {
		return "", false, fmt.Errorf("encode tags: %w", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM memory_items WHERE id = ?)`, id,
	).Scan(&exists); err != nil {
		return "", false, fmt.Errorf("check memory existence: %w", err)
	}
	if exists {
		return id, false, nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_items
			(id, title, content, tags, source_type, domain, created_at,
			 access_count, success_count, failure_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0)`,
		id, item.Title, item.Content, string(tagsJSON),
		string(item.SourceType), item.Domain, formatTime(createdAt),
	); err != nil {
		return "", false, fmt.Errorf("insert memory: %w", err)
	}
	return id, true, nil
}

// HasMemory reports whether an item with the given id exists.
func (db *DB) HasMemory(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := db.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM memory_items WHERE id = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: has memory: %w", mapSQLiteErr(err))
	}
	return exists, nil
}

// GetMemory retrieves an item by id, or nil when absent.
func (db *DB) GetMemory(ctx context.Context, id string) (*model.MemoryItem, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns("m")+` FROM memory_items m WHERE m.id = ?`, id)
	item, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get memory: %w", mapSQLiteErr(err))
	}
	return &item, nil
}

// ListMemories returns all items passing the filter. Result order carries
// no meaning; callers must not rely on it.
func (db *DB) ListMemories(ctx context.Context, filter model.MemoryFilter) ([]model.MemoryItem, error) {
	query := `SELECT ` + memoryColumns("m") + ` FROM memory_items m`
	var (
		where []string
		args  []any
	)
	if filter.SourceType != "" {
		where = append(where, "m.source_type = ?")
		args = append(args, string(filter.SourceType))
	}
	if filter.Domain != "" {
		where = append(where, "m.domain = ?")
		args = append(args, filter.Domain)
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list memories: %w", mapSQLiteErr(err))
	}
	defer rows.Close()

	var items []model.MemoryItem
	for rows.Next() {
		item, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan memory: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateMemoryStats atomically increments access_count and exactly one of
// success_count/failure_count for the given item. Counters only ever go up.
func (db *DB) UpdateMemoryStats(ctx context.Context, id string, outcome model.Outcome) error {
	var column string
	switch outcome {
	case model.OutcomeSuccess:
		column = "success_count"
	case model.OutcomeFailure:
		column = "failure_count"
	default:
		return fmt.Errorf("storage: unknown outcome %q", outcome)
	}

	return db.writeTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE memory_items
			 SET access_count = access_count + 1, `+column+` = `+column+` + 1
			 WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("update memory stats: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update memory stats: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("memory %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
