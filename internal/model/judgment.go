package model

import (
	"time"

	"github.com/google/uuid"
)

// Judgment is an evaluator's verdict over a trajectory. Judgments are
// append-only: re-judging a trajectory adds a new row rather than
// overwriting the previous verdict.
type Judgment struct {
	ID           uuid.UUID `json:"id"`
	TrajectoryID uuid.UUID `json:"trajectory_id"`
	Success      bool      `json:"success"`
	Confidence   float64   `json:"confidence"`
	Rationale    string    `json:"rationale"`
	Judge        string    `json:"judge"`
	CreatedAt    time.Time `json:"created_at"`
}
