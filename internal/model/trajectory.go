package model

import (
	"time"

	"github.com/google/uuid"
)

// Step is one reasoning step inside a trajectory: the model's reasoning,
// the code it executed, and the output that execution produced.
type Step struct {
	Reasoning string `json:"reasoning"`
	Code      string `json:"code,omitempty"`
	Output    string `json:"output,omitempty"`
}

// Trajectory is the ordered record of one execution's reasoning steps.
// It belongs to exactly one run and is immutable after the run ends.
type Trajectory struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}
