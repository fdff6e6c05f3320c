package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fraudsight/fraudsight/internal/scoring"
)

func trainCmd() *cobra.Command {
	var (
		trees      int
		sampleSize int
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the anomaly model and write the artifact",
		Long: `Trains the isolation forest on a synthetic amount distribution and writes
the model artifact to the configured model path. Deterministic for a given
seed, so environments can reproduce the same model.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			amounts := scoring.SyntheticAmounts(seed)
			forest, err := scoring.Train(amounts, scoring.TrainConfig{
				Trees:      trees,
				SampleSize: sampleSize,
				Seed:       seed,
			})
			if err != nil {
				return fmt.Errorf("training failed: %w", err)
			}

			if err := forest.Save(cfg.Model.Path); err != nil {
				return fmt.Errorf("failed to write model artifact: %w", err)
			}

			slog.Info("Model trained",
				"path", cfg.Model.Path,
				"trees", trees,
				"sample_size", sampleSize,
				"samples", len(amounts))
			return nil
		},
	}

	defaults := scoring.DefaultTrainConfig()
	cmd.Flags().IntVar(&trees, "trees", defaults.Trees, "number of trees in the forest")
	cmd.Flags().IntVar(&sampleSize, "sample-size", defaults.SampleSize, "subsample size per tree")
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "random seed for data and training")

	return cmd
}
