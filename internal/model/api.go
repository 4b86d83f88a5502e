package model

import "fmt"

// Field length limits for memory items. These keep a single oversized
// candidate from filling TEXT columns and the full-text index with
// caller-controlled garbage.
const (
	MaxTitleLen   = 500
	MaxContentLen = 64 * 1024 // 64 KB
	MaxTagLen     = 100
	MaxTagCount   = 32
)

// MemoryFilter narrows GetAllMemories and pack export. Zero values match
// everything.
type MemoryFilter struct {
	SourceType SourceType
	Domain     string
}

// Matches reports whether the item passes the filter.
func (f MemoryFilter) Matches(item MemoryItem) bool {
	if f.SourceType != "" && item.SourceType != f.SourceType {
		return false
	}
	if f.Domain != "" && item.Domain != f.Domain {
		return false
	}
	return true
}

// ValidateMemoryItem checks the fields callers control before an item is
// hashed and stored.
func ValidateMemoryItem(item MemoryItem) error {
	if item.Title == "" {
		return fmt.Errorf("model: memory title is required")
	}
	if item.Content == "" {
		return fmt.Errorf("model: memory content is required")
	}
	if !item.SourceType.Valid() {
		return fmt.Errorf("model: unknown source_type %q", item.SourceType)
	}
	if len(item.Title) > MaxTitleLen {
		return fmt.Errorf("model: title exceeds maximum length of %d bytes", MaxTitleLen)
	}
	if len(item.Content) > MaxContentLen {
		return fmt.Errorf("model: content exceeds maximum length of %d bytes", MaxContentLen)
	}
	if len(item.Tags) > MaxTagCount {
		return fmt.Errorf("model: at most %d tags allowed", MaxTagCount)
	}
	for i, tag := range item.Tags {
		if tag == "" {
			return fmt.Errorf("model: tags[%d] is empty", i)
		}
		if len(tag) > MaxTagLen {
			return fmt.Errorf("model: tags[%d] exceeds maximum length of %d bytes", i, MaxTagLen)
		}
	}
	return nil
}

// ValidateJudgment checks judgment fields at the API boundary.
func ValidateJudgment(j Judgment) error {
	if j.Confidence < 0 || j.Confidence > 1 {
		return fmt.Errorf("model: confidence must be within [0.0, 1.0], got %v", j.Confidence)
	}
	return nil
}
