package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noetic-dev/reasoningbank/internal/model"
)

// CreateJudgment records a verdict over an existing trajectory. Judgments
// are append-only; re-judging adds a row rather than replacing one.
func (db *DB) CreateJudgment(ctx context.Context, trajectoryID uuid.UUID, success bool, confidence float64, rationale, judge string) (model.Judgment, error) {
	j := model.Judgment{
		ID:           uuid.New(),
		TrajectoryID: trajectoryID,
		Success:      success,
		Confidence:   confidence,
		Rationale:    rationale,
		Judge:        judge,
		CreatedAt:    time.Now().UTC(),
	}
	if err := model.ValidateJudgment(j); err != nil {
		return model.Judgment{}, err
	}

	err := db.writeTx(ctx, func(tx *sql.Tx) error {
		exists, err := trajectoryExists(ctx, tx, trajectoryID)
		if err != nil {
			return fmt.Errorf("check trajectory existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("trajectory %s: %w", trajectoryID, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO judgments (id, trajectory_id, success, confidence, rationale, judge, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			j.ID.String(), trajectoryID.String(), boolToInt(success),
			confidence, rationale, judge, formatTime(j.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert judgment: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Judgment{}, fmt.Errorf("storage: create judgment: %w", err)
	}
	return j, nil
}

// GetJudgment returns the most recent judgment over the trajectory, or nil
// when it has not been judged. Absence is a normal outcome, not an error.
func (db *DB) GetJudgment(ctx context.Context, trajectoryID uuid.UUID) (*model.Judgment, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT id, trajectory_id, success, confidence, rationale, judge, created_at
		 FROM judgments WHERE trajectory_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		trajectoryID.String(),
	)
	j, err := scanJudgment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get judgment: %w", mapSQLiteErr(err))
	}
	return &j, nil
}

// ListJudgments returns every judgment recorded for the trajectory in the
// order they were made. Useful when a trajectory has been re-judged.
func (db *DB) ListJudgments(ctx context.Context, trajectoryID uuid.UUID) ([]model.Judgment, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, trajectory_id, success, confidence, rationale, judge, created_at
		 FROM judgments WHERE trajectory_id = ?
		 ORDER BY created_at ASC, id ASC`,
		trajectoryID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list judgments: %w", mapSQLiteErr(err))
	}
	defer rows.Close()

	var judgments []model.Judgment
	for rows.Next() {
		j, err := scanJudgment(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan judgment: %w", err)
		}
		judgments = append(judgments, j)
	}
	return judgments, rows.Err()
}

func scanJudgment(row rowScanner) (model.Judgment, error) {
	var (
		j         model.Judgment
		idStr     string
		trajStr   string
		success   int
		createdAt string
	)
	if err := row.Scan(&idStr, &trajStr, &success, &j.Confidence, &j.Rationale, &j.Judge, &createdAt); err != nil {
		return model.Judgment{}, err
	}
	var err error
	if j.ID, err = uuid.Parse(idStr); err != nil {
		return model.Judgment{}, fmt.Errorf("parse judgment id: %w", err)
	}
	if j.TrajectoryID, err = uuid.Parse(trajStr); err != nil {
		return model.Judgment{}, fmt.Errorf("parse trajectory id: %w", err)
	}
	j.Success = success != 0
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Judgment{}, err
	}
	return j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
