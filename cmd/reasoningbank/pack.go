package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	reasoningbank "github.com/noetic-dev/reasoningbank"
)

func openBank(dbPath string) (*reasoningbank.Bank, error) {
	var opts []reasoningbank.Option
	if dbPath != "" {
		opts = append(opts, reasoningbank.WithPath(dbPath))
	}
	return reasoningbank.Open(opts...)
}

func exportCmd() *cobra.Command {
	var dbPath, sourceType string
	cmd := &cobra.Command{
		Use:   "export <pack-file>",
		Short: "Export memories to a line-delimited JSON pack file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := reasoningbank.MemoryFilter{
				SourceType: reasoningbank.SourceType(sourceType),
			}
			if filter.SourceType != "" && !filter.SourceType.Valid() {
				return fmt.Errorf("unknown source type %q", sourceType)
			}

			bank, err := openBank(dbPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			count, err := bank.ExportPack(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			fmt.Printf("exported %d memories to %s\n", count, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (default $RB_DB_PATH)")
	cmd.Flags().StringVar(&sourceType, "source-type", "", "only export memories of this source type")
	return cmd
}

func importCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "import <pack-file>",
		Short: "Import a pack file, skipping records already in the bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := openBank(dbPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			result, err := bank.ImportPack(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("imported %d memories (%d duplicates skipped)\n",
				result.Inserted, result.SkippedDuplicate)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (default $RB_DB_PATH)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pack-file>",
		Short: "Check a pack file and report every problem without touching the bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issues, err := reasoningbank.ValidatePack(args[0])
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				fmt.Printf("%s: ok\n", args[0])
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(os.Stderr, "line %d: %s: %s\n", issue.Line, issue.Field, issue.Reason)
			}
			return fmt.Errorf("%d issues found", len(issues))
		},
	}
}

func mergeCmd() *cobra.Command {
	var out string
	var noDedup bool
	cmd := &cobra.Command{
		Use:   "merge <pack-file>...",
		Short: "Merge pack files into one, first occurrence winning on duplicates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := reasoningbank.MergePacks(args, out, !noDedup)
			if err != nil {
				return err
			}
			fmt.Printf("merged %d packs into %s (%d records)\n", len(args), out, count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "merged.jsonl", "output pack file")
	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "keep duplicate records instead of collapsing them")
	return cmd
}
