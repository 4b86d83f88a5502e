// Package mcp implements the Model Context Protocol server for the
// reasoning bank.
//
// The MCP server exposes the bank's operations as tools and resources, so
// MCP-compatible agents can retrieve strategies before a run, record the
// provenance of the run, and bank what they learned — without linking the
// Go API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/noetic-dev/reasoningbank/internal/model"
	"github.com/noetic-dev/reasoningbank/internal/search"
	"github.com/noetic-dev/reasoningbank/internal/storage"
)

// Server wraps the MCP server with the bank's storage and retrieval
// layers.
type Server struct {
	mcpServer *mcpserver.MCPServer
	db        *storage.DB
	ranker    search.Ranker
	logger    *slog.Logger

	// retrieveLimit bounds memory_retrieve when the caller omits k.
	retrieveLimit int
}

// New creates and configures a new MCP server with all resources and
// tools registered. retrieveLimit is the result bound applied when a
// memory_retrieve call leaves k unset.
func New(db *storage.DB, ranker search.Ranker, logger *slog.Logger, version string, retrieveLimit int) *Server {
	s := &Server{
		db:            db,
		ranker:        ranker,
		logger:        logger,
		retrieveLimit: retrieveLimit,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"reasoningbank",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout until the
// context is canceled or the stream closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcpserver.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerResources() {
	// reasoningbank://memories/recent — most recently banked strategies.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"reasoningbank://memories/recent",
			"Recent Memories",
			mcplib.WithResourceDescription("Most recently banked strategies"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleMemoriesRecent,
	)

	// reasoningbank://stats — row counts and retrieval configuration.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"reasoningbank://stats",
			"Bank Statistics",
			mcplib.WithResourceDescription("Row counts per table and memories per source type"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStats,
	)
}

func (s *Server) handleMemoriesRecent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	items, err := s.db.ListMemories(ctx, model.MemoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("mcp: recent memories: %w", err)
	}

	// Newest first, capped so the resource stays a summary.
	const maxRecent = 20
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > maxRecent {
		items = items[:maxRecent]
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal memories: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "reasoningbank://memories/recent",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleStats(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	stats, err := s.db.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: stats: %w", err)
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal stats: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "reasoningbank://stats",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err))
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}
