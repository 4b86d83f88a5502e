package pack_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/pack"
	"github.com/noetic-dev/reasoningbank/internal/testutil"
)

func writePack(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pack.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func recordLine(title, content, sourceType string) string {
	return fmt.Sprintf(`{"id":"x","title":%q,"content":%q,"source_type":%q}`, title, content, sourceType)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testutil.OpenDB(t)

	items := []model.MemoryItem{
		{Title: "batch writes", Content: "batch database writes for throughput", SourceType: model.SourceSuccess, Tags: []string{"db"}},
		{Title: "read the error", Content: "error messages usually name the failing constraint", SourceType: model.SourceFailure},
		{Title: "start simple", Content: "try the trivial approach before the clever one", SourceType: model.SourceSeed, Domain: "planning"},
	}
	for _, item := range items {
		_, _, err := src.InsertMemory(ctx, item)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "out", "pack.jsonl")
	count, err := pack.Export(ctx, src, path, model.MemoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	dst := testutil.OpenDB(t)
	result, err := pack.Import(ctx, dst, path)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.Zero(t, result.SkippedDuplicate)

	// Content-addressed ids survive the round trip.
	srcItems, err := src.ListMemories(ctx, model.MemoryFilter{})
	require.NoError(t, err)
	for _, want := range srcItems {
		got, err := dst.GetMemory(ctx, want.ID)
		require.NoError(t, err)
		require.NotNil(t, got, "item %q missing after import", want.Title)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Content, got.Content)
		assert.Equal(t, want.SourceType, got.SourceType)
		assert.Equal(t, want.Domain, got.Domain)
	}
}

func TestExportFiltered(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	for _, item := range []model.MemoryItem{
		{Title: "keep", Content: "a", SourceType: model.SourceSeed},
		{Title: "drop", Content: "b", SourceType: model.SourceSuccess},
	} {
		_, _, err := db.InsertMemory(ctx, item)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "seed.jsonl")
	count, err := pack.Export(ctx, db, path, model.MemoryFilter{SourceType: model.SourceSeed})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := pack.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "keep", records[0].Title)
}

func TestExportEmptyStoreWritesEmptyPack(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	path := filepath.Join(t.TempDir(), "empty.jsonl")
	count, err := pack.Export(ctx, db, path, model.MemoryFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)

	// Zero lines is a valid pack.
	records, err := pack.ReadAll(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestImportSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	_, _, err := db.InsertMemory(ctx, model.MemoryItem{
		Title: "already here", Content: "present before import", SourceType: model.SourceSuccess,
	})
	require.NoError(t, err)

	path := writePack(t,
		recordLine("already here", "present before import", "success"),
		recordLine("new item", "arrives via the pack", "seed"),
		recordLine("new item", "arrives via the pack", "seed"),
	)

	result, err := pack.Import(ctx, db, path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 2, result.SkippedDuplicate)
}

func TestImportRecomputesIDs(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	// The declared id is advisory; identity comes from content.
	path := writePack(t, `{"id":"lies","title":"honest title","content":"honest content","source_type":"seed"}`)

	result, err := pack.Import(ctx, db, path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	got, err := db.GetMemory(ctx, "lies")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := pack.Record{Title: "honest title", Content: "honest content"}.ContentID()
	got, err = db.GetMemory(ctx, want)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "honest title", got.Title)
}

func TestImportDoesNotImportCounters(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	path := writePack(t, `{"id":"x","title":"counted","content":"c","source_type":"success","access_count":10,"success_count":8,"failure_count":2}`)

	_, err := pack.Import(ctx, db, path)
	require.NoError(t, err)

	id := pack.Record{Title: "counted", Content: "c"}.ContentID()
	got, err := db.GetMemory(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Zero(t, got.AccessCount)
	assert.Zero(t, got.SuccessCount)
	assert.Zero(t, got.FailureCount)
}

func TestImportRollsBackOnBadLine(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	path := writePack(t,
		recordLine("good one", "valid line before the failure", "success"),
		`{"broken json`,
		recordLine("never reached", "after the failure", "success"),
	)

	result, err := pack.Import(ctx, db, path)
	require.Error(t, err)

	var ferr *pack.FormatError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, 2, ferr.Line)

	// Nothing from the file lands, valid earlier lines included.
	assert.Equal(t, pack.ImportResult{}, result)
	id := pack.Record{Title: "good one", Content: "valid line before the failure"}.ContentID()
	got, err := db.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	items, err := db.ListMemories(ctx, model.MemoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestImportMissingFile(t *testing.T) {
	db := testutil.OpenDB(t)

	_, err := pack.Import(context.Background(), db, filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImportSkipsBlankLines(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	path := writePack(t,
		recordLine("one", "first", "seed"),
		"",
		"   ",
		recordLine("two", "second", "seed"),
	)

	result, err := pack.Import(ctx, db, path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
}

func TestValidateCleanPack(t *testing.T) {
	path := writePack(t,
		recordLine("one", "first", "success"),
		recordLine("two", "second", "failure"),
	)

	issues, err := pack.Validate(path)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidateReportsAllProblems(t *testing.T) {
	path := writePack(t,
		recordLine("fine", "valid record", "success"),
		`{"bad json`,
		`{"id":"x","title":"","content":"no title","source_type":"success"}`,
		`{"id":"x","title":"t","content":"c","source_type":"guess"}`,
		recordLine("fine", "valid record", "seed"),
	)

	issues, err := pack.Validate(path)
	require.NoError(t, err)
	require.Len(t, issues, 4)

	assert.Equal(t, 2, issues[0].Line)
	assert.Contains(t, issues[0].Reason, "malformed JSON")

	assert.Equal(t, 3, issues[1].Line)
	assert.Equal(t, "title", issues[1].Field)

	assert.Equal(t, 4, issues[2].Line)
	assert.Equal(t, "source_type", issues[2].Field)

	// Line 5 duplicates line 1 by content, despite the differing source type.
	assert.Equal(t, 5, issues[3].Line)
	assert.Equal(t, "id", issues[3].Field)
	assert.Contains(t, issues[3].Reason, "line 1")
}

func TestValidateMissingFileIsAnIssue(t *testing.T) {
	issues, err := pack.Validate(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Zero(t, issues[0].Line)
	assert.Equal(t, "file", issues[0].Field)
}

// Validate and Import agree on which lines are acceptable: a pack that
// validates clean imports without a format error.
func TestValidateImportAgreement(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)

	path := writePack(t,
		recordLine("a", "alpha", "success"),
		recordLine("b", "bravo", "failure"),
		recordLine("c", "charlie", "seed"),
	)

	issues, err := pack.Validate(path)
	require.NoError(t, err)
	require.Empty(t, issues)

	_, err = pack.Import(ctx, db, path)
	require.NoError(t, err)
}

func TestMergeDedup(t *testing.T) {
	shared := recordLine("shared", "appears in both packs", "success")
	packA := writePack(t,
		recordLine("only a", "first pack", "success"),
		shared,
	)
	packB := writePack(t,
		shared,
		recordLine("only b", "second pack", "seed"),
	)

	merged, err := pack.Merge([]string{packA, packB}, true)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	// First occurrence wins and input order is preserved.
	assert.Equal(t, "only a", merged[0].Title)
	assert.Equal(t, "shared", merged[1].Title)
	assert.Equal(t, "only b", merged[2].Title)
}

func TestMergeWithoutDedupKeepsDuplicates(t *testing.T) {
	shared := recordLine("shared", "same content twice", "success")
	packA := writePack(t, shared)
	packB := writePack(t, shared)

	merged, err := pack.Merge([]string{packA, packB}, false)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
}

func TestMergeMissingInputFails(t *testing.T) {
	packA := writePack(t, recordLine("a", "alpha", "success"))

	_, err := pack.Merge([]string{packA, filepath.Join(t.TempDir(), "gone.jsonl")}, true)
	require.Error(t, err)
}

func TestWriteAllReadAllRoundTrip(t *testing.T) {
	records := []pack.Record{
		{ID: "1", Title: "a", Content: "alpha", SourceType: "success", Tags: []string{"x"}},
		{ID: "2", Title: "b", Content: "bravo", SourceType: "seed", Domain: "planning"},
	}

	path := filepath.Join(t.TempDir(), "nested", "rt.jsonl")
	require.NoError(t, pack.WriteAll(path, records))

	got, err := pack.ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}
