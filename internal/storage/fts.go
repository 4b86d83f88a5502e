package storage

import (
	"context"
	"fmt"

	"github.com/noetic-dev/reasoningbank/internal/model"
)

// setupFTS creates the external-content FTS5 index over memory items and
// the triggers that keep it synchronized. Counter updates rewrite the row
// but not the indexed columns; the update trigger keeps the index correct
// regardless.
func (db *DB) setupFTS(ctx context.Context) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
			title, content, tags,
			content='memory_items', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS memory_fts_ai AFTER INSERT ON memory_items BEGIN
			INSERT INTO memory_fts(rowid, title, content, tags)
			VALUES (new.rowid, new.title, new.content, new.tags);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_fts_ad AFTER DELETE ON memory_items BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, title, content, tags)
			VALUES ('delete', old.rowid, old.title, old.content, old.tags);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_fts_au AFTER UPDATE ON memory_items BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, title, content, tags)
			VALUES ('delete', old.rowid, old.title, old.content, old.tags);
			INSERT INTO memory_fts(rowid, title, content, tags)
			VALUES (new.rowid, new.title, new.content, new.tags);
		END`,
		// Reindex from memory_items so rows written before the index
		// existed (an overlap-only build, say) become searchable. For an
		// external-content table the rebuild is idempotent.
		`INSERT INTO memory_fts(memory_fts) VALUES ('rebuild')`,
	}
	for _, stmt := range stmts {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: setup fts index: %w", mapSQLiteErr(err))
		}
	}
	return nil
}

// SearchMemoriesFTS runs an FTS5 MATCH query and returns up to k items with
// their BM25 relevance. BM25 ranks are negative with lower meaning more
// relevant; scores are negated so callers see higher-is-better. Ties break
// on id so retrieval is reproducible against an unchanged store.
//
// The match string must already be valid FTS5 query syntax; the retrieval
// engine builds it from sanitized terms.
func (db *DB) SearchMemoriesFTS(ctx context.Context, match string, k int) ([]model.ScoredMemory, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+memoryColumns("m")+`, bm25(memory_fts) AS rank
		FROM memory_fts
		JOIN memory_items m ON m.rowid = memory_fts.rowid
		WHERE memory_fts MATCH ?
		ORDER BY rank ASC, m.id ASC
		LIMIT ?`,
		match, k,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: fts search: %w", mapSQLiteErr(err))
	}
	defer rows.Close()

	var results []model.ScoredMemory
	for rows.Next() {
		var rank float64
		item, err := scanMemory(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("storage: scan fts result: %w", err)
		}
		results = append(results, model.ScoredMemory{Item: item, Score: -rank})
	}
	return results, rows.Err()
}
