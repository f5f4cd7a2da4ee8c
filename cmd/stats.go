package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/fiscora/docaudit/internal/pipeline"
	"github.com/fiscora/docaudit/internal/store"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate outcomes over recent processing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := st.ListRecent(ctx, statsLimit)
		if err != nil {
			return err
		}

		stats := pipeline.ComputeStats(results)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 100, "number of recent runs to aggregate")
	rootCmd.AddCommand(statsCmd)
}
