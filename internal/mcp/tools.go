package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/pack"
)

func (s *Server) registerTools() {
	// memory_retrieve — ranked lookup before starting a run.
	s.mcpServer.AddTool(
		mcplib.NewTool("memory_retrieve",
			mcplib.WithDescription(`Retrieve stored strategies relevant to a task before starting it.

Call this FIRST with a description of the task at hand. Inject the returned
strategies into your working context, then report each one you actually used
via memory_record_usage so its track record stays honest.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("query", mcplib.Description("Free-text search query"), mcplib.Required()),
			mcplib.WithNumber("k", mcplib.Description("Maximum results to return")),
		),
		s.handleMemoryRetrieve,
	)

	// memory_add — bank a distilled strategy.
	s.mcpServer.AddTool(
		mcplib.NewTool("memory_add",
			mcplib.WithDescription("Store a distilled strategy. Identical title+content deduplicate to one record."),
			mcplib.WithString("title", mcplib.Description("Short strategy name"), mcplib.Required()),
			mcplib.WithString("content", mcplib.Description("The reusable strategy text"), mcplib.Required()),
			mcplib.WithString("source_type", mcplib.Description("One of success, failure, seed"), mcplib.Required()),
			mcplib.WithString("tags", mcplib.Description("Comma-separated descriptive tags")),
			mcplib.WithString("domain", mcplib.Description("Optional free-text grouping, e.g. an ontology name")),
		),
		s.handleMemoryAdd,
	)

	// memory_record_usage — close the retrieval loop.
	s.mcpServer.AddTool(
		mcplib.NewTool("memory_record_usage",
			mcplib.WithDescription("Record that a retrieved memory was injected into a trajectory's context"),
			mcplib.WithString("memory_id", mcplib.Description("Memory content-hash id"), mcplib.Required()),
			mcplib.WithString("trajectory_id", mcplib.Description("Consuming trajectory UUID"), mcplib.Required()),
			mcplib.WithNumber("rank", mcplib.Description("Position in the retrieval result"), mcplib.Required()),
			mcplib.WithNumber("score", mcplib.Description("Retrieval relevance score"), mcplib.Required()),
		),
		s.handleMemoryRecordUsage,
	)

	// memory_update_stats — attribute an outcome once judged.
	s.mcpServer.AddTool(
		mcplib.NewTool("memory_update_stats",
			mcplib.WithDescription("Increment a memory's access counter and one of its success/failure counters"),
			mcplib.WithString("memory_id", mcplib.Description("Memory content-hash id"), mcplib.Required()),
			mcplib.WithString("outcome", mcplib.Description("One of success, failure"), mcplib.Required()),
		),
		s.handleMemoryUpdateStats,
	)

	// run_start / run_complete — provenance bookkeeping.
	s.mcpServer.AddTool(
		mcplib.NewTool("run_start",
			mcplib.WithDescription("Record the start of a task execution attempt"),
			mcplib.WithString("task_id", mcplib.Description("Task identifier"), mcplib.Required()),
			mcplib.WithString("configuration", mcplib.Description("JSON object of run configuration key-values")),
		),
		s.handleRunStart,
	)
	s.mcpServer.AddTool(
		mcplib.NewTool("run_complete",
			mcplib.WithDescription("Mark a run complete or failed"),
			mcplib.WithString("run_id", mcplib.Description("Run UUID"), mcplib.Required()),
			mcplib.WithString("status", mcplib.Description("One of complete, failed"), mcplib.Required()),
		),
		s.handleRunComplete,
	)

	// trajectory_add — submit the execution's step record.
	s.mcpServer.AddTool(
		mcplib.NewTool("trajectory_add",
			mcplib.WithDescription("Store the ordered reasoning steps of an execution under an existing run"),
			mcplib.WithString("run_id", mcplib.Description("Parent run UUID"), mcplib.Required()),
			mcplib.WithString("steps", mcplib.Description("JSON array of {reasoning, code, output} objects"), mcplib.Required()),
		),
		s.handleTrajectoryAdd,
	)

	// judgment_add — submit a verdict.
	s.mcpServer.AddTool(
		mcplib.NewTool("judgment_add",
			mcplib.WithDescription("Append a verdict over a trajectory"),
			mcplib.WithString("trajectory_id", mcplib.Description("Trajectory UUID"), mcplib.Required()),
			mcplib.WithBoolean("success", mcplib.Description("Whether the trajectory succeeded"), mcplib.Required()),
			mcplib.WithNumber("confidence", mcplib.Description("Confidence 0.0-1.0"), mcplib.Required()),
			mcplib.WithString("rationale", mcplib.Description("Why the judge reached this verdict")),
			mcplib.WithString("judge", mcplib.Description("Judge identity, e.g. the model used")),
		),
		s.handleJudgmentAdd,
	)

	// pack_export / pack_import / pack_validate — bulk exchange.
	s.mcpServer.AddTool(
		mcplib.NewTool("pack_export",
			mcplib.WithDescription("Export memories to a line-delimited JSON pack file"),
			mcplib.WithString("path", mcplib.Description("Destination file path"), mcplib.Required()),
			mcplib.WithString("source_type", mcplib.Description("Optional filter: success, failure, or seed")),
		),
		s.handlePackExport,
	)
	s.mcpServer.AddTool(
		mcplib.NewTool("pack_import",
			mcplib.WithDescription("Import a pack file, skipping records already in the bank"),
			mcplib.WithString("path", mcplib.Description("Pack file path"), mcplib.Required()),
		),
		s.handlePackImport,
	)
	s.mcpServer.AddTool(
		mcplib.NewTool("pack_validate",
			mcplib.WithDescription("Check a pack file and report every content problem without touching the bank"),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("path", mcplib.Description("Pack file path"), mcplib.Required()),
		),
		s.handlePackValidate,
	)
}

func (s *Server) handleMemoryRetrieve(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return errorResult("query is required"), nil
	}
	k := request.GetInt("k", s.retrieveLimit)

	results, err := s.ranker.Retrieve(ctx, query, k)
	if err != nil {
		return errorResult(fmt.Sprintf("retrieve failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"results": results,
		"total":   len(results),
	}), nil
}

func (s *Server) handleMemoryAdd(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	item := model.MemoryItem{
		Title:      request.GetString("title", ""),
		Content:    request.GetString("content", ""),
		SourceType: model.SourceType(request.GetString("source_type", "")),
		Domain:     request.GetString("domain", ""),
	}
	if tags := request.GetString("tags", ""); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				item.Tags = append(item.Tags, t)
			}
		}
	}

	id, created, err := s.db.InsertMemory(ctx, item)
	if err != nil {
		return errorResult(fmt.Sprintf("add memory failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"id":      id,
		"created": created,
	}), nil
}

func (s *Server) handleMemoryRecordUsage(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	memoryID := request.GetString("memory_id", "")
	trajectoryID, err := uuid.Parse(request.GetString("trajectory_id", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("invalid trajectory_id: %v", err)), nil
	}
	rank := request.GetInt("rank", 0)
	score := request.GetFloat("score", 0)

	if err := s.db.RecordUsage(ctx, memoryID, trajectoryID, rank, score); err != nil {
		return errorResult(fmt.Sprintf("record usage failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"status": "recorded"}), nil
}

func (s *Server) handleMemoryUpdateStats(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	memoryID := request.GetString("memory_id", "")
	outcome := model.Outcome(request.GetString("outcome", ""))

	if err := s.db.UpdateMemoryStats(ctx, memoryID, outcome); err != nil {
		return errorResult(fmt.Sprintf("update stats failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"status": "updated"}), nil
}

func (s *Server) handleRunStart(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	taskID := request.GetString("task_id", "")
	if taskID == "" {
		return errorResult("task_id is required"), nil
	}

	configuration := map[string]string{}
	if cfg := request.GetString("configuration", ""); cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &configuration); err != nil {
			return errorResult(fmt.Sprintf("invalid configuration JSON: %v", err)), nil
		}
	}

	run, err := s.db.CreateRun(ctx, taskID, configuration)
	if err != nil {
		return errorResult(fmt.Sprintf("start run failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"run_id":     run.ID,
		"started_at": run.StartedAt,
	}), nil
}

func (s *Server) handleRunComplete(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID, err := uuid.Parse(request.GetString("run_id", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("invalid run_id: %v", err)), nil
	}
	status := model.RunStatus(request.GetString("status", ""))

	if err := s.db.CompleteRun(ctx, runID, status); err != nil {
		return errorResult(fmt.Sprintf("complete run failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"status": string(status)}), nil
}

func (s *Server) handleTrajectoryAdd(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID, err := uuid.Parse(request.GetString("run_id", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("invalid run_id: %v", err)), nil
	}

	var steps []model.Step
	if raw := request.GetString("steps", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &steps); err != nil {
			return errorResult(fmt.Sprintf("invalid steps JSON: %v", err)), nil
		}
	}

	traj, err := s.db.CreateTrajectory(ctx, runID, steps)
	if err != nil {
		return errorResult(fmt.Sprintf("add trajectory failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"trajectory_id": traj.ID,
		"steps":         len(traj.Steps),
	}), nil
}

func (s *Server) handleJudgmentAdd(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	trajectoryID, err := uuid.Parse(request.GetString("trajectory_id", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("invalid trajectory_id: %v", err)), nil
	}
	success := request.GetBool("success", false)
	confidence := request.GetFloat("confidence", 0)
	rationale := request.GetString("rationale", "")
	judge := request.GetString("judge", "")

	j, err := s.db.CreateJudgment(ctx, trajectoryID, success, confidence, rationale, judge)
	if err != nil {
		return errorResult(fmt.Sprintf("add judgment failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"judgment_id": j.ID}), nil
}

func (s *Server) handlePackExport(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return errorResult("path is required"), nil
	}
	filter := model.MemoryFilter{
		SourceType: model.SourceType(request.GetString("source_type", "")),
	}
	if filter.SourceType != "" && !filter.SourceType.Valid() {
		return errorResult(fmt.Sprintf("unknown source_type %q", filter.SourceType)), nil
	}

	count, err := pack.Export(ctx, s.db, path, filter)
	if err != nil {
		return errorResult(fmt.Sprintf("export failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"exported": count, "path": path}), nil
}

func (s *Server) handlePackImport(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return errorResult("path is required"), nil
	}

	result, err := pack.Import(ctx, s.db, path)
	if err != nil {
		return errorResult(fmt.Sprintf("import failed: %v", err)), nil
	}
	return jsonResult(result), nil
}

func (s *Server) handlePackValidate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return errorResult("path is required"), nil
	}

	issues, err := pack.Validate(path)
	if err != nil {
		return errorResult(fmt.Sprintf("validate failed: %v", err)), nil
	}
	if issues == nil {
		issues = []pack.Issue{}
	}
	return jsonResult(map[string]any{
		"issues": issues,
		"clean":  len(issues) == 0,
	}), nil
}
