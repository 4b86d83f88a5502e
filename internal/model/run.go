// Package model defines the core domain types for the reasoning bank.
//
// All types correspond directly to database tables and pack records.
// Types use strong typing (UUIDs, time.Time, enums) and avoid
// interface{} wherever possible.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a task run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one task execution attempt. It owns zero or more trajectories
// and is immutable once its status leaves "running".
type Run struct {
	ID            uuid.UUID         `json:"id"`
	TaskID        string            `json:"task_id"`
	Status        RunStatus         `json:"status"`
	Configuration map[string]string `json:"configuration"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}
