package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noetic-dev/reasoningbank/internal/model"
)

// CreateTrajectory inserts the step record of one execution under an
// existing run. The parent run must exist: the existence check runs inside
// the same transaction as the insert, so a trajectory can never be written
// for a run that was observed missing.
func (db *DB) CreateTrajectory(ctx context.Context, runID uuid.UUID, steps []model.Step) (model.Trajectory, error) {
	traj := model.Trajectory{
		ID:        uuid.New(),
		RunID:     runID,
		Steps:     steps,
		CreatedAt: time.Now().UTC(),
	}
	if traj.Steps == nil {
		traj.Steps = []model.Step{}
	}

	stepsJSON, err := json.Marshal(traj.Steps)
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("storage: encode steps: %w", err)
	}

	err = db.writeTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM runs WHERE id = ?)`, runID.String(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check run existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO trajectories (id, run_id, steps, created_at)
			 VALUES (?, ?, ?, ?)`,
			traj.ID.String(), runID.String(), string(stepsJSON), formatTime(traj.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert trajectory: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("storage: create trajectory: %w", err)
	}
	return traj, nil
}

// GetTrajectory retrieves a trajectory by id, or nil when absent.
func (db *DB) GetTrajectory(ctx context.Context, id uuid.UUID) (*model.Trajectory, error) {
	var (
		traj      model.Trajectory
		idStr     string
		runIDStr  string
		stepsJSON string
		createdAt string
	)
	err := db.db.QueryRowContext(ctx,
		`SELECT id, run_id, steps, created_at FROM trajectories WHERE id = ?`,
		id.String(),
	).Scan(&idStr, &runIDStr, &stepsJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get trajectory: %w", mapSQLiteErr(err))
	}

	if traj.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("storage: parse trajectory id: %w", err)
	}
	if traj.RunID, err = uuid.Parse(runIDStr); err != nil {
		return nil, fmt.Errorf("storage: parse run id: %w", err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &traj.Steps); err != nil {
		return nil, fmt.Errorf("storage: decode steps: %w", err)
	}
	if traj.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &traj, nil
}

// trajectoryExists reports row existence inside an open transaction.
func trajectoryExists(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM trajectories WHERE id = ?)`, id.String(),
	).Scan(&exists)
	return exists, err
}
