package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiscora/docaudit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docaudit",
	Short: "Validation and judgment pipeline for Belgian financial documents",
	Long:  "Classifies document text, extracts structured fields via Claude, audits them against Belgian compliance rules, self-corrects, and renders an auto-approve / review / reject verdict.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
