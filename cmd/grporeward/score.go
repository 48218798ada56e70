package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lamim/grporeward/pkg/models"
)

func newScoreCmd() *cobra.Command {
	var (
		outputPath string
		returnDict bool
	)

	cmd := &cobra.Command{
		Use:   "score <batch.json>...",
		Short: "Score batch files",
		Long: `Score one or more batch files and write one JSON result per batch.
Each input file holds a single batch: {"samples": [...], "rm_scores": ...}.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, secrets)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if outputPath != "" && outputPath != "-" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						a.logger.Error("failed to close output file", "error", err)
					}
				}()
				out = f
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return scoreFiles(ctx, a, args, out, returnDict)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file for results (- for stdout)")
	cmd.Flags().BoolVar(&returnDict, "return-dict", false, "Write reward_tensor and reward_extra_info instead of the bare tensor")
	return cmd
}

func scoreFiles(ctx context.Context, a *app, paths []string, out io.Writer, returnDict bool) error {
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Scoring batches"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := readBatch(path)
		if err != nil {
			return err
		}

		result, err := a.manager.Compute(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to score %s: %w", path, err)
		}

		var v any = result.RewardTensor
		if returnDict {
			v = result
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}

		a.logger.Info("Batch scored", "file", path, "samples", len(batch.Samples))
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return nil
}

func readBatch(path string) (*models.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var batch models.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	return &batch, nil
}
