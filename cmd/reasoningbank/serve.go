package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noetic-dev/reasoningbank/internal/config"
	"github.com/noetic-dev/reasoningbank/internal/mcp"
	"github.com/noetic-dev/reasoningbank/internal/search"
	"github.com/noetic-dev/reasoningbank/internal/storage"
	"github.com/noetic-dev/reasoningbank/internal/telemetry"
	"github.com/noetic-dev/reasoningbank/migrations"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the bank over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// MCP owns stdout, so logs go to stderr via newLogger.
	logger := newLogger(cfg.LogLevel)
	slog.Info("reasoningbank starting", "version", version, "db", cfg.DBPath)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := storage.OpenTimeout(cfg.DBPath, cfg.BusyTimeout, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	srv := mcp.New(db, search.New(db, logger), logger, version, cfg.RetrieveLimit)

	slog.Info("mcp server listening on stdio")
	if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	slog.Info("reasoningbank stopped")
	return nil
}
