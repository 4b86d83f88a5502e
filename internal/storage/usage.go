package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noetic-dev/reasoningbank/internal/model"
)

// RecordUsage links one retrieval event to the trajectory that consumed
// the memory. Purely observational: it never touches the item's counters —
// "was retrieved" and "was it the reason for success" stay separately
// recorded facts.
func (db *DB) RecordUsage(ctx context.Context, memoryID string, trajectoryID uuid.UUID, rank int, score float64) error {
	return db.writeTx(ctx, func(tx *sql.Tx) error {
		var memExists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM memory_items WHERE id = ?)`, memoryID,
		).Scan(&memExists); err != nil {
			return fmt.Errorf("check memory existence: %w", err)
		}
		if !memExists {
			return fmt.Errorf("memory %s: %w", memoryID, ErrNotFound)
		}

		trajExists, err := trajectoryExists(ctx, tx, trajectoryID)
		if err != nil {
			return fmt.Errorf("check trajectory existence: %w", err)
		}
		if !trajExists {
			return fmt.Errorf("trajectory %s: %w", trajectoryID, ErrNotFound)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO usage_records (memory_id, trajectory_id, "rank", score, recorded_at)
			 VALUES (?, ?, ?, ?, ?)`,
			memoryID, trajectoryID.String(), rank, score, formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert usage record: %w", err)
		}
		return nil
	})
}

// GetUsageForMemory returns every recorded retrieval of the given item,
// oldest first.
func (db *DB) GetUsageForMemory(ctx context.Context, memoryID string) ([]model.UsageRecord, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, memory_id, trajectory_id, "rank", score, recorded_at
		 FROM usage_records WHERE memory_id = ?
		 ORDER BY recorded_at ASC, id ASC`,
		memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: usage for memory: %w", mapSQLiteErr(err))
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var (
			rec        model.UsageRecord
			trajStr    string
			recordedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.MemoryID, &trajStr, &rec.Rank, &rec.Score, &recordedAt); err != nil {
			return nil, fmt.Errorf("storage: scan usage record: %w", err)
		}
		if rec.TrajectoryID, err = uuid.Parse(trajStr); err != nil {
			return nil, fmt.Errorf("storage: parse trajectory id: %w", err)
		}
		if rec.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
