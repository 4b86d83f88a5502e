// Package search provides ranked retrieval over memory items, with BM25
// ranking through the store's FTS5 index and transparent fallback to
// term-overlap scoring when the runtime's SQLite build lacks the module.
package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/storage"
)

// Ranker scores memory items against a free-text query.
//
// The contract is best-effort relevance ordering, not any particular
// scoring function: results are ≤ k, scores non-increasing, ties broken by
// id so retrieval is reproducible against an unchanged store. An empty
// store, a blank query, or k=0 yields an empty result, never an error.
type Ranker interface {
	Retrieve(ctx context.Context, query string, k int) ([]model.ScoredMemory, error)
}

// New selects a ranking strategy for the opened store: BM25 over the FTS5
// index when the runtime supports it, term-overlap scoring otherwise.
func New(db *storage.DB, logger *slog.Logger) Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	if db.HasFTS() {
		logger.Debug("search: using bm25 ranker")
		return &FTSRanker{db: db}
	}
	logger.Info("search: fts5 unavailable, using overlap ranker")
	return &OverlapRanker{db: db}
}

// tokenize splits free text into lowercase terms, dropping punctuation and
// duplicates. Both rankers share it so a query tokenizes identically
// regardless of which strategy the store opened with.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
