package storage

import (
	"context"
	"fmt"

	"github.com/noetic-dev/reasoningbank/internal/model"
)

// Stats summarizes the bank's contents for operator surfaces.
type Stats struct {
	Runs         int                      `json:"runs"`
	Trajectories int                      `json:"trajectories"`
	Judgments    int                      `json:"judgments"`
	Memories     int                      `json:"memories"`
	UsageRecords int                      `json:"usage_records"`
	BySourceType map[model.SourceType]int `json:"by_source_type"`
	FTSEnabled   bool                     `json:"fts_enabled"`
}

// GetStats counts rows per table and memories per source type.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		BySourceType: map[model.SourceType]int{},
		FTSEnabled:   db.fts,
	}

	counts := []struct {
		table string
		dest  *int
	}{
		{"runs", &stats.Runs},
		{"trajectories", &stats.Trajectories},
		{"judgments", &stats.Judgments},
		{"memory_items", &stats.Memories},
		{"usage_records", &stats.UsageRecords},
	}
	for _, c := range counts {
		if err := db.db.QueryRowContext(ctx,
			`SELECT count(*) FROM `+c.table).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("storage: count %s: %w", c.table, mapSQLiteErr(err))
		}
	}

	rows, err := db.db.QueryContext(ctx,
		`SELECT source_type, count(*) FROM memory_items GROUP BY source_type`)
	if err != nil {
		return Stats{}, fmt.Errorf("storage: count by source type: %w", mapSQLiteErr(err))
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return Stats{}, fmt.Errorf("storage: scan source type count: %w", err)
		}
		stats.BySourceType[model.SourceType(st)] = n
	}
	return stats, rows.Err()
}
