// Package pack implements the portable memory-exchange file format: UTF-8
// text, one JSON object per line. A file with zero lines is a valid, empty
// pack.
//
// Records are parsed into a strict type with required and optional fields
// validated at the boundary; content problems are reported as data (issues
// or a FormatError carrying the line number), never as panics or partial
// writes.
package pack

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/noetic-dev/reasoningbank/internal/identity"
	"github.com/noetic-dev/reasoningbank/internal/model"
)

// Record is one line of a pack file. Required keys: id, title, content,
// source_type. Missing numeric fields default to zero.
type Record struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	SourceType   string   `json:"source_type"`
	Tags         []string `json:"tags,omitempty"`
	Domain       string   `json:"domain,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	AccessCount  int      `json:"access_count,omitempty"`
	SuccessCount int      `json:"success_count,omitempty"`
	FailureCount int      `json:"failure_count,omitempty"`
}

// FormatError reports a malformed pack line. Line numbers are 1-based.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("pack: line %d: %s", e.Line, e.Reason)
}

// Issue is one problem found by Validate. Line 0 refers to the file as a
// whole rather than a specific record.
type Issue struct {
	Line   int    `json:"line"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// fieldIssues returns the per-record validation problems: missing required
// fields and source types outside the enum.
func (r Record) fieldIssues(line int) []Issue {
	var issues []Issue
	if r.Title == "" {
		issues = append(issues, Issue{Line: line, Field: "title", Reason: "missing required field"})
	}
	if r.Content == "" {
		issues = append(issues, Issue{Line: line, Field: "content", Reason: "missing required field"})
	}
	if r.SourceType == "" {
		issues = append(issues, Issue{Line: line, Field: "source_type", Reason: "missing required field"})
	} else if !model.SourceType(r.SourceType).Valid() {
		issues = append(issues, Issue{
			Line: line, Field: "source_type",
			Reason: fmt.Sprintf("%q is not one of success, failure, seed", r.SourceType),
		})
	}
	return issues
}

// parseLine decodes and validates one pack line. The returned error is
// always a *FormatError.
func parseLine(line []byte, lineNo int) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, &FormatError{Line: lineNo, Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if issues := rec.fieldIssues(lineNo); len(issues) > 0 {
		first := issues[0]
		return Record{}, &FormatError{Line: lineNo, Reason: fmt.Sprintf("%s: %s", first.Field, first.Reason)}
	}
	return rec, nil
}

// ContentID returns the record's content-addressed id, recomputed from the
// normalized title and content. The declared id field is advisory: identity
// is always derived from content, so an item imports to the same id it
// would get from a direct add.
func (r Record) ContentID() string {
	return identity.MemoryID(r.Title, r.Content)
}

// Item converts the record to a memory item with its computed id.
func (r Record) Item() model.MemoryItem {
	item := model.MemoryItem{
		ID:           r.ContentID(),
		Title:        r.Title,
		Content:      r.Content,
		Tags:         r.Tags,
		SourceType:   model.SourceType(r.SourceType),
		Domain:       r.Domain,
		AccessCount:  r.AccessCount,
		SuccessCount: r.SuccessCount,
		FailureCount: r.FailureCount,
	}
	if r.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
			item.CreatedAt = t
		}
	}
	return item
}

// FromItem converts a stored memory item to its pack record.
func FromItem(item model.MemoryItem) Record {
	rec := Record{
		ID:           item.ID,
		Title:        item.Title,
		Content:      item.Content,
		SourceType:   string(item.SourceType),
		Tags:         item.Tags,
		Domain:       item.Domain,
		AccessCount:  item.AccessCount,
		SuccessCount: item.SuccessCount,
		FailureCount: item.FailureCount,
	}
	if !item.CreatedAt.IsZero() {
		rec.CreatedAt = item.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return rec
}
