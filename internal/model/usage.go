package model

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord links one retrieval event to the trajectory that consumed it.
// Whether the memory was retrieved and whether it contributed to success are
// separately recorded facts: this type captures only the retrieval; outcome
// attribution happens later via the memory stat counters.
type UsageRecord struct {
	ID           int64     `json:"id"`
	MemoryID     string    `json:"memory_id"`
	TrajectoryID uuid.UUID `json:"trajectory_id"`
	Rank         int       `json:"rank"`
	Score        float64   `json:"score"`
	RecordedAt   time.Time `json:"recorded_at"`
}
