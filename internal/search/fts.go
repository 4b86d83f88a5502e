package search

import (
	"context"
	"strings"

	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/storage"
)

// FTSRanker ranks with SQLite's built-in BM25 over the memory_fts index
// (title, content, tags).
type FTSRanker struct {
	db *storage.DB
}

// NewFTSRanker builds a BM25 ranker over db's FTS index. Callers normally
// go through New, which checks that the index exists first.
func NewFTSRanker(db *storage.DB) *FTSRanker {
	return &FTSRanker{db: db}
}

// Retrieve tokenizes the query, ORs the terms into an FTS5 MATCH
// expression, and returns up to k items ordered by descending BM25
// relevance. Quoting each term keeps caller text from being interpreted as
// FTS5 query syntax.
func (r *FTSRanker) Retrieve(ctx context.Context, query string, k int) ([]model.ScoredMemory, error) {
	if k <= 0 {
		return nil, nil
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	match := strings.Join(quoted, " OR ")

	return r.db.SearchMemoriesFTS(ctx, match, k)
}
