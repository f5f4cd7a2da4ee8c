package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fiscora/docaudit/internal/model"
	"github.com/fiscora/docaudit/internal/pipeline"
)

var (
	batchDir         string
	batchGlob        string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every document text file in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := filepath.Glob(filepath.Join(batchDir, batchGlob))
		if err != nil {
			return eris.Wrap(err, "expand batch glob")
		}
		if len(paths) == 0 {
			zap.L().Info("no documents matched", zap.String("dir", batchDir), zap.String("glob", batchGlob))
			return nil
		}
		sort.Strings(paths)

		zap.L().Info("processing batch",
			zap.Int("documents", len(paths)),
			zap.Int("concurrency", batchConcurrency),
		)

		var mu sync.Mutex
		results := make([]*model.ProcessingResult, 0, len(paths))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)
		for _, path := range paths {
			g.Go(func() error {
				text, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrapf(err, "read document %s", path)
				}

				result := env.Coordinator.Process(gctx, string(text))

				if err := env.Store.SaveResult(gctx, result); err != nil {
					zap.L().Warn("failed to persist result", zap.String("run_id", result.RunID), zap.Error(err))
				}

				zap.L().Info("document done",
					zap.String("file", filepath.Base(path)),
					zap.String("run_id", result.RunID),
					zap.String("outcome", string(result.Outcome())),
				)

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		stats := pipeline.ComputeStats(results)
		zap.L().Info("batch complete",
			zap.Int("total", stats.TotalProcessed),
			zap.Int("auto_approved", stats.AutoApproved),
			zap.Int("needs_review", stats.NeedsReview),
			zap.Int("rejected", stats.Rejected),
			zap.Float64("auto_approve_rate", stats.AutoApproveRate),
			zap.Bool("meets_silence_goal", stats.MeetsSilenceGoal),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of document text files (required)")
	batchCmd.Flags().StringVar(&batchGlob, "glob", "*.txt", "filename pattern within --dir")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "max documents processed at once")
	batchCmd.Flags().StringVar(&profileFlag, "profile", "", "processing profile (default|fast|thorough|offline|development)")
	_ = batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}
