// Package reasoningbank is the public API for embedding the procedural
// memory store in an agent loop.
//
// External collaborators open a Bank, submit the provenance chain of each
// task run (run → trajectory → judgment), add the memory candidates their
// extractor distills, and retrieve ranked memories before starting a new
// run:
//
//	bank, err := reasoningbank.Open(
//	    reasoningbank.WithPath("bank.db"),
//	    reasoningbank.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer bank.Close()
//
//	results, err := bank.Retrieve(ctx, "bacteria taxa", 3)
//
// The import graph enforces a strict no-cycle rule: reasoningbank (root)
// imports internal/*, but internal/* never imports the root.
package reasoningbank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/metric"

	"github.com/noetic-dev/reasoningbank/internal/config"
	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/pack"
	"github.com/noetic-dev/reasoningbank/internal/search"
	"github.com/noetic-dev/reasoningbank/internal/storage"
	"github.com/noetic-dev/reasoningbank/internal/telemetry"
	"github.com/noetic-dev/reasoningbank/migrations"
)

// Public aliases for the domain types and errors, so embedding callers
// never import internal packages (they can't — the Go toolchain forbids
// it).
type (
	Run          = model.Run
	RunStatus    = model.RunStatus
	Step         = model.Step
	Trajectory   = model.Trajectory
	Judgment     = model.Judgment
	MemoryItem   = model.MemoryItem
	SourceType   = model.SourceType
	Outcome      = model.Outcome
	ScoredMemory = model.ScoredMemory
	UsageRecord  = model.UsageRecord
	MemoryFilter = model.MemoryFilter
	PackRecord   = pack.Record
	PackIssue    = pack.Issue
	ImportResult = pack.ImportResult
	Stats        = storage.Stats

	// Ranker is the retrieval strategy interface; replaceable via
	// WithRanker.
	Ranker = search.Ranker
)

// Re-exported enum values.
const (
	RunStatusRunning  = model.RunStatusRunning
	RunStatusComplete = model.RunStatusComplete
	RunStatusFailed   = model.RunStatusFailed

	SourceSuccess = model.SourceSuccess
	SourceFailure = model.SourceFailure
	SourceSeed    = model.SourceSeed

	OutcomeSuccess = model.OutcomeSuccess
	OutcomeFailure = model.OutcomeFailure
)

// Re-exported sentinel errors. Match with errors.Is.
var (
	ErrNotFound  = storage.ErrNotFound
	ErrBusy      = storage.ErrBusy
	ErrSchema    = storage.ErrSchema
	ErrIntegrity = storage.ErrIntegrity
	ErrStorage   = storage.ErrStorage
)

// Bank is an opened reasoning bank. Construct with Open(), release with
// Close(). Safe for concurrent use; writers serialize on the store.
type Bank struct {
	cfg    config.Config
	db     *storage.DB
	ranker search.Ranker
	logger *slog.Logger

	memoriesAdded metric.Int64Counter
	dedupSkips    metric.Int64Counter
	retrievals    metric.Int64Counter
}

// Open opens or creates the backing file, runs migrations, and selects the
// retrieval strategy the runtime supports. The handle must be released
// with Close on every exit path.
func Open(opts ...Option) (*Bank, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reasoningbank: load config: %w", err)
	}
	if o.path != "" {
		cfg.DBPath = o.path
	}
	if o.retrieveLimit > 0 {
		cfg.RetrieveLimit = o.retrieveLimit
	}

	db, err := storage.OpenTimeout(cfg.DBPath, cfg.BusyTimeout, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}

	ranker := o.ranker
	if ranker == nil {
		ranker = search.New(db, logger)
	}

	b := &Bank{
		cfg:    cfg,
		db:     db,
		ranker: ranker,
		logger: logger,
	}
	b.initMetrics()

	logger.Info("reasoningbank open", "path", cfg.DBPath, "fts", db.HasFTS())
	return b, nil
}

// initMetrics creates the bank's instruments from the global meter
// provider; no-ops when telemetry was never initialized.
func (b *Bank) initMetrics() {
	meter := telemetry.Meter("reasoningbank")
	var err error
	if b.memoriesAdded, err = meter.Int64Counter("reasoningbank.memories.added"); err != nil {
		b.logger.Warn("metric init failed", "metric", "memories.added", "error", err)
	}
	if b.dedupSkips, err = meter.Int64Counter("reasoningbank.memories.dedup_skips"); err != nil {
		b.logger.Warn("metric init failed", "metric", "memories.dedup_skips", "error", err)
	}
	if b.retrievals, err = meter.Int64Counter("reasoningbank.retrievals"); err != nil {
		b.logger.Warn("metric init failed", "metric", "retrievals", "error", err)
	}
}

// Close releases the store handle.
func (b *Bank) Close() error {
	return b.db.Close()
}

// DB exposes the storage layer for the MCP and CLI surfaces.
func (b *Bank) DB() *storage.DB {
	return b.db
}

// RetrieveLimit is the configured default k for retrieval surfaces that
// don't take an explicit bound.
func (b *Bank) RetrieveLimit() int {
	return b.cfg.RetrieveLimit
}

// AddRun records the start of a task execution attempt.
func (b *Bank) AddRun(ctx context.Context, taskID string, configuration map[string]string) (Run, error) {
	return b.db.CreateRun(ctx, taskID, configuration)
}

// CompleteRun moves a run out of the running state, after which it is
// immutable.
func (b *Bank) CompleteRun(ctx context.Context, runID uuid.UUID, status RunStatus) error {
	return b.db.CompleteRun(ctx, runID, status)
}

// GetRun returns a run by id, or nil when absent.
func (b *Bank) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	return b.db.GetRun(ctx, runID)
}

// AddTrajectory stores the ordered step record of one execution under an
// existing run. Fails with ErrNotFound when the run is unknown.
func (b *Bank) AddTrajectory(ctx context.Context, runID uuid.UUID, steps []Step) (Trajectory, error) {
	return b.db.CreateTrajectory(ctx, runID, steps)
}

// GetTrajectory returns a trajectory by id, or nil when absent.
func (b *Bank) GetTrajectory(ctx context.Context, trajectoryID uuid.UUID) (*Trajectory, error) {
	return b.db.GetTrajectory(ctx, trajectoryID)
}

// AddJudgment appends a verdict over an existing trajectory. Fails with
// ErrNotFound when the trajectory is unknown.
func (b *Bank) AddJudgment(ctx context.Context, trajectoryID uuid.UUID, success bool, confidence float64, rationale, judge string) (Judgment, error) {
	return b.db.CreateJudgment(ctx, trajectoryID, success, confidence, rationale, judge)
}

// GetJudgment returns the most recent judgment for the trajectory, or nil
// when it has not been judged.
func (b *Bank) GetJudgment(ctx context.Context, trajectoryID uuid.UUID) (*Judgment, error) {
	return b.db.GetJudgment(ctx, trajectoryID)
}

// AddMemory stores a distilled strategy, deduplicating on the content
// hash of its normalized title and content. Returns the item's id and
// whether a new row was created.
func (b *Bank) AddMemory(ctx context.Context, item MemoryItem) (string, bool, error) {
	id, created, err := b.db.InsertMemory(ctx, item)
	if err != nil {
		return "", false, err
	}
	if created {
		if b.memoriesAdded != nil {
			b.memoriesAdded.Add(ctx, 1)
		}
	} else if b.dedupSkips != nil {
		b.dedupSkips.Add(ctx, 1)
	}
	return id, created, nil
}

// HasMemory reports whether an item with the given id exists.
func (b *Bank) HasMemory(ctx context.Context, id string) (bool, error) {
	return b.db.HasMemory(ctx, id)
}

// GetMemory returns an item by id, or nil when absent.
func (b *Bank) GetMemory(ctx context.Context, id string) (*MemoryItem, error) {
	return b.db.GetMemory(ctx, id)
}

// GetAllMemories returns every item passing the filter. Order carries no
// meaning.
func (b *Bank) GetAllMemories(ctx context.Context, filter MemoryFilter) ([]MemoryItem, error) {
	return b.db.ListMemories(ctx, filter)
}

// UpdateMemoryStats atomically increments an item's access counter and
// exactly one of its success/failure counters once the consuming run's
// outcome is known.
func (b *Bank) UpdateMemoryStats(ctx context.Context, id string, outcome Outcome) error {
	return b.db.UpdateMemoryStats(ctx, id, outcome)
}

// Retrieve returns up to k memories ranked by descending relevance to the
// query. An empty store, a blank query, or k ≤ 0 yields an empty result;
// callers that want the configured default bound use RetrieveDefault.
func (b *Bank) Retrieve(ctx context.Context, query string, k int) ([]ScoredMemory, error) {
	if k <= 0 {
		return nil, nil
	}
	results, err := b.ranker.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if b.retrievals != nil {
		b.retrievals.Add(ctx, 1)
	}
	return results, nil
}

// RetrieveDefault is Retrieve bounded by the configured default limit
// (RB_RETRIEVE_LIMIT), for callers that don't carry a k of their own.
func (b *Bank) RetrieveDefault(ctx context.Context, query string) ([]ScoredMemory, error) {
	return b.Retrieve(ctx, query, b.cfg.RetrieveLimit)
}

// RecordUsage links one retrieval result to the trajectory that consumed
// it. Call it right after retrieval; attribute the outcome later with
// UpdateMemoryStats.
func (b *Bank) RecordUsage(ctx context.Context, memoryID string, trajectoryID uuid.UUID, rank int, score float64) error {
	return b.db.RecordUsage(ctx, memoryID, trajectoryID, rank, score)
}

// GetUsageForMemory returns every recorded retrieval of the item.
func (b *Bank) GetUsageForMemory(ctx context.Context, memoryID string) ([]UsageRecord, error) {
	return b.db.GetUsageForMemory(ctx, memoryID)
}

// ExportPack writes matching memories to a line-delimited pack file.
func (b *Bank) ExportPack(ctx context.Context, path string, filter MemoryFilter) (int, error) {
	return pack.Export(ctx, b.db, path, filter)
}

// ImportPack reads a pack file into the bank, skipping duplicates.
func (b *Bank) ImportPack(ctx context.Context, path string) (ImportResult, error) {
	return pack.Import(ctx, b.db, path)
}

// ValidatePack checks a pack file without touching the store, reporting
// content problems as data.
func ValidatePack(path string) ([]PackIssue, error) {
	return pack.Validate(path)
}

// MergePacks concatenates packs, optionally collapsing records that share
// a content id (first occurrence wins), and writes the result to outPath.
func MergePacks(paths []string, outPath string, dedup bool) (int, error) {
	records, err := pack.Merge(paths, dedup)
	if err != nil {
		return 0, err
	}
	if err := pack.WriteAll(outPath, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// GetStats summarizes the bank's contents.
func (b *Bank) GetStats(ctx context.Context) (Stats, error) {
	return b.db.GetStats(ctx)
}
