package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processFile string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single document text file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		text, err := os.ReadFile(processFile)
		if err != nil {
			return eris.Wrapf(err, "read document %s", processFile)
		}

		result := env.Coordinator.Process(ctx, string(text))

		if err := env.Store.SaveResult(ctx, result); err != nil {
			zap.L().Warn("failed to persist result", zap.String("run_id", result.RunID), zap.Error(err))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	processCmd.Flags().StringVar(&processFile, "file", "", "path to the document text file (required)")
	processCmd.Flags().StringVar(&profileFlag, "profile", "", "processing profile (default|fast|thorough|offline|development)")
	_ = processCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(processCmd)
}
