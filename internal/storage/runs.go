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

// CreateRun inserts a new task run in the running state and returns it.
func (db *DB) CreateRun(ctx context.Context, taskID string, configuration map[string]string) (model.Run, error) {
	run := model.Run{
		ID:            uuid.New(),
		TaskID:        taskID,
		Status:        model.RunStatusRunning,
		Configuration: configuration,
		StartedAt:     time.Now().UTC(),
	}
	if run.Configuration == nil {
		run.Configuration = map[string]string{}
	}

	cfgJSON, err := json.Marshal(run.Configuration)
	if err != nil {
		return model.Run{}, fmt.Errorf("storage: encode configuration: %w", err)
	}

	err = db.writeTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, task_id, status, configuration, started_at)
			 VALUES (?, ?, ?, ?, ?)`,
			run.ID.String(), run.TaskID, string(run.Status),
			string(cfgJSON), formatTime(run.StartedAt),
		)
		return err
	})
	if err != nil {
		return model.Run{}, fmt.Errorf("storage: create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by id, or nil when absent.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	var (
		run         model.Run
		idStr       string
		cfgJSON     string
		startedAt   string
		completedAt sql.NullString
	)
	err := db.db.QueryRowContext(ctx,
		`SELECT id, task_id, status, configuration, started_at, completed_at
		 FROM runs WHERE id = ?`, id.String(),
	).Scan(&idStr, &run.TaskID, &run.Status, &cfgJSON, &startedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get run: %w", mapSQLiteErr(err))
	}

	run.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("storage: parse run id: %w", err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &run.Configuration); err != nil {
		return nil, fmt.Errorf("storage: decode configuration: %w", err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

// CompleteRun marks a run complete or failed. A run leaves the running
// state exactly once; completing an unknown or already-finished run fails
// with ErrNotFound.
func (db *DB) CompleteRun(ctx context.Context, id uuid.UUID, status model.RunStatus) error {
	if status != model.RunStatusComplete && status != model.RunStatusFailed {
		return fmt.Errorf("storage: invalid terminal status %q", status)
	}
	return db.writeTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, completed_at = ?
			 WHERE id = ? AND status = 'running'`,
			string(status), formatTime(time.Now()), id.String(),
		)
		if err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("run %s not running: %w", id, ErrNotFound)
		}
		return nil
	})
}
