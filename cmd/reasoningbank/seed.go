package main

import (
	"fmt"

	"github.com/spf13/cobra"

	reasoningbank "github.com/noetic-dev/reasoningbank"
	"github.com/noetic-dev/reasoningbank/internal/pack"
)

func seedCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "seed <pack-file>",
		Short: "Load curated strategies from a pack file, marking them as seed memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := pack.ReadAll(args[0])
			if err != nil {
				return err
			}

			bank, err := openBank(dbPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			var inserted, skipped int
			for _, rec := range records {
				item := rec.Item()
				item.SourceType = reasoningbank.SourceSeed
				_, created, err := bank.AddMemory(cmd.Context(), item)
				if err != nil {
					return fmt.Errorf("seed %q: %w", rec.Title, err)
				}
				if created {
					inserted++
				} else {
					skipped++
				}
			}
			fmt.Printf("seeded %d memories (%d already present)\n", inserted, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (default $RB_DB_PATH)")
	return cmd
}
