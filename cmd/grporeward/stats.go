package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/grporeward/internal/analytics"
	"github.com/lamim/grporeward/internal/writer"
)

func newStatsCmd() *cobra.Command {
	var (
		date        string
		logPath     string
		scalarsPath string
		asJSON      bool
		epochSteps  int
		batchSize   int
		generations int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a training log across epochs",
		Long: `Summarize a training log: overall correctness counts, then a
comparison of each pair of consecutive epochs. Mean response length per epoch
is included when a scalar export (--scalars) is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if logPath == "" {
				if date == "" {
					date = time.Now().Format(writer.DateLayout)
				}
				if err := writer.ValidateLogDate(date); err != nil {
					return err
				}
				quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
				session, err := writer.NewSession(cfg.Logging.LogDir, time.Now(), quiet)
				if err != nil {
					return err
				}
				if logPath, err = session.TrainingLogPathFor(date); err != nil {
					return err
				}
			}

			entries, err := writer.ReadTrainingLog(logPath)
			if err != nil {
				return err
			}

			opts := analytics.Options{
				EpochSteps:     cfg.Stats.EpochSteps,
				BatchSize:      cfg.Stats.BatchSize,
				NumGenerations: cfg.Stats.NumGenerations,
				Marker:         cfg.Reward.CompletionMarker,
			}
			if epochSteps > 0 {
				opts.EpochSteps = epochSteps
			}
			if batchSize > 0 {
				opts.BatchSize = batchSize
			}
			if generations > 0 {
				opts.NumGenerations = generations
			}
			if scalarsPath != "" {
				if opts.ResponseLengths, err = analytics.LoadResponseLengths(scalarsPath); err != nil {
					return err
				}
			}

			report, err := analytics.Analyze(entries, opts)
			if err != nil {
				return fmt.Errorf("failed to analyze %s: %w", logPath, err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return report.WriteText(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Log date as YYYYMMDD (default today)")
	cmd.Flags().StringVar(&logPath, "log", "", "Training log path (overrides --date)")
	cmd.Flags().StringVar(&scalarsPath, "scalars", "", "Scalar export JSON with response_length/mean")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().IntVar(&epochSteps, "epoch-steps", 0, "Training steps per epoch (overrides stats.epoch_steps)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Prompts per step (overrides stats.batch_size)")
	cmd.Flags().IntVar(&generations, "num-generations", 0, "Generations per prompt (overrides stats.num_generations)")
	return cmd
}
