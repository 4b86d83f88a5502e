package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print row counts and retrieval backend for the bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := openBank(dbPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			stats, err := bank.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (default $RB_DB_PATH)")
	return cmd
}
