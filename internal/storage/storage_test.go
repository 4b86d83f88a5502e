package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noetic-dev/reasoningbank/internal/identity"
	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/storage"
	"github.com/noetic-dev/reasoningbank/internal/testutil"
	"github.com/noetic-dev/reasoningbank/migrations"
)

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "bank.db")

	db, err := storage.Open(path, testutil.Logger())
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
}

func TestOpenRejectsNonDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite file, not even close"), 0o600))

	_, err := storage.Open(path, testutil.Logger())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrStorage)
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	// Second run must be a no-op, not a "table exists" failure.
	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS))
}

func TestFTSIndexRebuiltForPreexistingRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.db")

	db, err := storage.Open(path, testutil.Logger())
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	if !db.HasFTS() {
		t.Skip("sqlite build lacks fts5")
	}
	_, _, err = db.InsertMemory(ctx, model.MemoryItem{
		Title:      "bacteria taxa",
		Content:    "identify bacteria taxa from culture morphology",
		SourceType: model.SourceSeed,
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Leave the file the way a build without the index would have: rows
	// present, no memory_fts table or triggers.
	raw, err := sql.Open("sqlite", "file:"+url.PathEscape(path))
	require.NoError(t, err)
	for _, stmt := range []string{
		`DROP TRIGGER memory_fts_ai`,
		`DROP TRIGGER memory_fts_ad`,
		`DROP TRIGGER memory_fts_au`,
		`DROP TABLE memory_fts`,
	} {
		_, err := raw.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, raw.Close())

	// Reopening must index the rows that predate the table.
	db, err = storage.Open(path, testutil.Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))

	results, err := db.SearchMemoriesFTS(ctx, `"bacteria"`, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bacteria taxa", results[0].Item.Title)
}

func TestCreateAndGetRun(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-42", map[string]string{"model": "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "task-42", run.TaskID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "gpt-4o", got.Configuration["model"])
}

func TestGetRunAbsent(t *testing.T) {
	db := testutil.OpenDB(t)

	got, err := db.GetRun(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompleteRun(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-complete", nil)
	require.NoError(t, err)

	require.NoError(t, db.CompleteRun(ctx, run.ID, model.RunStatusComplete))

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// A finished run cannot change status again.
	err = db.CompleteRun(ctx, run.ID, model.RunStatusFailed)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateTrajectoryRequiresRun(t *testing.T) {
	db := testutil.OpenDB(t)

	_, err := db.CreateTrajectory(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTrajectoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-traj", nil)
	require.NoError(t, err)

	steps := []model.Step{
		{Reasoning: "inspect the schema first", Code: "SELECT name FROM sqlite_master", Output: "runs, trajectories"},
		{Reasoning: "then query the data"},
	}
	traj, err := db.CreateTrajectory(ctx, run.ID, steps)
	require.NoError(t, err)
	assert.Equal(t, run.ID, traj.RunID)

	got, err := db.GetTrajectory(ctx, traj.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "inspect the schema first", got.Steps[0].Reasoning)
	assert.Empty(t, got.Steps[1].Code)
}

func TestJudgmentsAppendOnly(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-judge", nil)
	require.NoError(t, err)
	traj, err := db.CreateTrajectory(ctx, run.ID, nil)
	require.NoError(t, err)

	first, err := db.CreateJudgment(ctx, traj.ID, false, 0.4, "looked wrong", "judge-v1")
	require.NoError(t, err)
	second, err := db.CreateJudgment(ctx, traj.ID, true, 0.9, "actually fine on re-read", "judge-v2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// GetJudgment returns the latest verdict.
	latest, err := db.GetJudgment(ctx, traj.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.True(t, latest.Success)

	all, err := db.ListJudgments(ctx, traj.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestJudgmentRequiresTrajectory(t *testing.T) {
	db := testutil.OpenDB(t)

	_, err := db.CreateJudgment(context.Background(), uuid.New(), true, 0.5, "", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsertMemoryDedup(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	item := model.MemoryItem{
		Title:      "Check the schema before querying",
		Content:    "Always inspect table definitions before writing queries against them.",
		SourceType: model.SourceSuccess,
		Tags:       []string{"sql", "caution"},
	}

	id1, created, err := db.InsertMemory(ctx, item)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, identity.MemoryID(item.Title, item.Content), id1)

	// Same normalized content under different casing and tags is the same row.
	dup := item
	dup.Title = "CHECK THE   schema before querying"
	dup.Tags = []string{"different"}
	dup.SourceType = model.SourceFailure

	id2, created, err := db.InsertMemory(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	all, err := db.ListMemories(ctx, model.MemoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	// First write wins: the original tags and source type survive.
	assert.Equal(t, model.SourceSuccess, all[0].SourceType)
	assert.Equal(t, []string{"sql", "caution"}, all[0].Tags)
}

func TestInsertMemoryValidation(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	_, _, err := db.InsertMemory(ctx, model.MemoryItem{Title: "", Content: "x", SourceType: model.SourceSeed})
	require.Error(t, err)

	_, _, err = db.InsertMemory(ctx, model.MemoryItem{Title: "t", Content: "x", SourceType: "bogus"})
	require.Error(t, err)
}

func TestInsertMemoryIgnoresCallerCounters(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	id, _, err := db.InsertMemory(ctx, model.MemoryItem{
		Title:        "counter smuggling",
		Content:      "callers cannot pre-load counters",
		SourceType:   model.SourceSeed,
		AccessCount:  99,
		SuccessCount: 50,
		FailureCount: 7,
	})
	require.NoError(t, err)

	got, err := db.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, got.AccessCount)
	assert.Zero(t, got.SuccessCount)
	assert.Zero(t, got.FailureCount)
}

func TestGetMemoryAbsent(t *testing.T) {
	db := testutil.OpenDB(t)

	got, err := db.GetMemory(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListMemoriesFilter(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	seed := []model.MemoryItem{
		{Title: "a", Content: "alpha", SourceType: model.SourceSuccess, Domain: "sql"},
		{Title: "b", Content: "bravo", SourceType: model.SourceFailure, Domain: "sql"},
		{Title: "c", Content: "charlie", SourceType: model.SourceSuccess, Domain: "planning"},
	}
	for _, m := range seed {
		_, _, err := db.InsertMemory(ctx, m)
		require.NoError(t, err)
	}

	bySource, err := db.ListMemories(ctx, model.MemoryFilter{SourceType: model.SourceSuccess})
	require.NoError(t, err)
	assert.Len(t, bySource, 2)

	byDomain, err := db.ListMemories(ctx, model.MemoryFilter{Domain: "sql"})
	require.NoError(t, err)
	assert.Len(t, byDomain, 2)

	both, err := db.ListMemories(ctx, model.MemoryFilter{SourceType: model.SourceSuccess, Domain: "sql"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "a", both[0].Title)
}

func TestUpdateMemoryStats(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	id, _, err := db.InsertMemory(ctx, model.MemoryItem{
		Title: "stats", Content: "counter target", SourceType: model.SourceSuccess,
	})
	require.NoError(t, err)

	require.NoError(t, db.UpdateMemoryStats(ctx, id, model.OutcomeSuccess))
	require.NoError(t, db.UpdateMemoryStats(ctx, id, model.OutcomeSuccess))
	require.NoError(t, db.UpdateMemoryStats(ctx, id, model.OutcomeFailure))

	got, err := db.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AccessCount)
	assert.Equal(t, 2, got.SuccessCount)
	assert.Equal(t, 1, got.FailureCount)
}

func TestUpdateMemoryStatsAbsent(t *testing.T) {
	db := testutil.OpenDB(t)

	err := db.UpdateMemoryStats(context.Background(), "missing", model.OutcomeSuccess)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateMemoryStatsRejectsUnknownOutcome(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	id, _, err := db.InsertMemory(ctx, model.MemoryItem{
		Title: "outcome check", Content: "x", SourceType: model.SourceSeed,
	})
	require.NoError(t, err)

	err = db.UpdateMemoryStats(ctx, id, "shrug")
	require.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrNotFound))
}

func TestRecordUsage(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-usage", nil)
	require.NoError(t, err)
	traj, err := db.CreateTrajectory(ctx, run.ID, nil)
	require.NoError(t, err)
	id, _, err := db.InsertMemory(ctx, model.MemoryItem{
		Title: "usage target", Content: "x", SourceType: model.SourceSuccess,
	})
	require.NoError(t, err)

	require.NoError(t, db.RecordUsage(ctx, id, traj.ID, 1, 0.87))
	require.NoError(t, db.RecordUsage(ctx, id, traj.ID, 2, 0.42))

	records, err := db.GetUsageForMemory(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Rank)
	assert.InDelta(t, 0.87, records[0].Score, 1e-9)
	assert.Equal(t, traj.ID, records[1].TrajectoryID)
}

func TestRecordUsageRequiresBothSides(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-usage-fk", nil)
	require.NoError(t, err)
	traj, err := db.CreateTrajectory(ctx, run.ID, nil)
	require.NoError(t, err)

	err = db.RecordUsage(ctx, "no-such-memory", traj.ID, 1, 0.5)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	id, _, err := db.InsertMemory(ctx, model.MemoryItem{
		Title: "fk target", Content: "x", SourceType: model.SourceSeed,
	})
	require.NoError(t, err)

	err = db.RecordUsage(ctx, id, uuid.New(), 1, 0.5)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-stats", nil)
	require.NoError(t, err)
	traj, err := db.CreateTrajectory(ctx, run.ID, nil)
	require.NoError(t, err)
	_, err = db.CreateJudgment(ctx, traj.ID, true, 1.0, "", "judge")
	require.NoError(t, err)

	for i, st := range []model.SourceType{model.SourceSuccess, model.SourceSuccess, model.SourceSeed} {
		_, _, err := db.InsertMemory(ctx, model.MemoryItem{
			Title: "stat item", Content: string(rune('a' + i)), SourceType: st,
		})
		require.NoError(t, err)
	}

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Trajectories)
	assert.Equal(t, 1, stats.Judgments)
	assert.Equal(t, 3, stats.Memories)
	assert.Equal(t, 2, stats.BySourceType[model.SourceSuccess])
	assert.Equal(t, 1, stats.BySourceType[model.SourceSeed])
}

func TestFullProvenanceChain(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	run, err := db.CreateRun(ctx, "task-chain", map[string]string{"seed": "7"})
	require.NoError(t, err)
	traj, err := db.CreateTrajectory(ctx, run.ID, []model.Step{{Reasoning: "try the direct approach"}})
	require.NoError(t, err)
	judgment, err := db.CreateJudgment(ctx, traj.ID, true, 0.95, "verified output", "judge-v2")
	require.NoError(t, err)
	require.NoError(t, db.CompleteRun(ctx, run.ID, model.RunStatusComplete))

	// Each link of the chain resolves back to its parent.
	gotJ, err := db.GetJudgment(ctx, traj.ID)
	require.NoError(t, err)
	assert.Equal(t, judgment.ID, gotJ.ID)

	gotT, err := db.GetTrajectory(ctx, gotJ.TrajectoryID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, gotT.RunID)

	gotR, err := db.GetRun(ctx, gotT.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, gotR.Status)
}
