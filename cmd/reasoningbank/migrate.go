package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noetic-dev/reasoningbank/internal/config"
	"github.com/noetic-dev/reasoningbank/internal/storage"
	"github.com/noetic-dev/reasoningbank/migrations"
)

func migrateCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the bank's schema without starting a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			logger := newLogger(cfg.LogLevel)

			db, err := storage.OpenTimeout(cfg.DBPath, cfg.BusyTimeout, logger)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			defer db.Close()

			if err := db.RunMigrations(cmd.Context(), migrations.FS); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			fmt.Printf("schema up to date at %s (fts=%v)\n", cfg.DBPath, db.HasFTS())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (default $RB_DB_PATH)")
	return cmd
}
