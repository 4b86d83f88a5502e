package model

import "time"

// SourceType records how a memory item entered the bank.
type SourceType string

const (
	SourceSuccess SourceType = "success"
	SourceFailure SourceType = "failure"
	SourceSeed    SourceType = "seed"
)

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	switch s {
	case SourceSuccess, SourceFailure, SourceSeed:
		return true
	}
	return false
}

// MemoryItem is a distilled, reusable strategy. Its ID is a content hash
// of the normalized title and content, so identical strategies always map
// to the same row regardless of which run produced them. Tags and domain
// are descriptive metadata only and never participate in identity.
//
// Counters are monotonically non-decreasing and change only through the
// stat-increment operation; items are otherwise never edited in place.
type MemoryItem struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Tags         []string   `json:"tags,omitempty"`
	SourceType   SourceType `json:"source_type"`
	Domain       string     `json:"domain,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	AccessCount  int        `json:"access_count"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
}

// Outcome is the observed consequence of applying a memory, fed back into
// its counters once the consuming trajectory has been judged.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ScoredMemory pairs a retrieved item with its relevance score.
type ScoredMemory struct {
	Item  MemoryItem `json:"item"`
	Score float64    `json:"score"`
}
