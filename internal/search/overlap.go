package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/storage"
)

// OverlapRanker is the fallback strategy for runtimes without FTS5. It
// scores each item by normalized term overlap: the fraction of distinct
// query terms appearing in the item's title, content, or tags.
//
// The scan is linear over all items; memory banks are small enough (the
// extractor caps candidates per trajectory) that this stays cheap.
type OverlapRanker struct {
	db *storage.DB
}

// NewOverlapRanker builds the fallback ranker over db.
func NewOverlapRanker(db *storage.DB) *OverlapRanker {
	return &OverlapRanker{db: db}
}

// Retrieve scores every stored item and returns the top k with score > 0,
// ordered by descending score, ties broken by id.
func (r *OverlapRanker) Retrieve(ctx context.Context, query string, k int) ([]model.ScoredMemory, error) {
	if k <= 0 {
		return nil, nil
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	items, err := r.db.ListMemories(ctx, model.MemoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("search: load memories: %w", err)
	}

	var scored []model.ScoredMemory
	for _, item := range items {
		text := strings.Join(append([]string{item.Title, item.Content}, item.Tags...), " ")
		itemTerms := make(map[string]bool)
		for _, t := range tokenize(text) {
			itemTerms[t] = true
		}

		matched := 0
		for _, t := range terms {
			if itemTerms[t] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		scored = append(scored, model.ScoredMemory{
			Item:  item,
			Score: float64(matched) / float64(len(terms)),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.ID < scored[j].Item.ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
