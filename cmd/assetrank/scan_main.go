package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	applog "github.com/sawpanic/assetrank/internal/log"
)

func newScanCmd() *cobra.Command {
	var progressMode string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan both universes and cache the scored metrics batch",
		Long: `Fetches the equity and crypto universes, derives metrics, scores every
asset and writes the batch to the metrics cache file. A later allocate
run reuses the cache instead of re-ingesting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), applog.Mode(progressMode))
		},
	}

	cmd.Flags().StringVar(&progressMode, "progress", "auto", "Progress output mode (auto|plain|json)")
	return cmd
}

func runScan(ctx context.Context, progressMode applog.Mode) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	progress := applog.NewProgress("scan", 2, progressMode)
	start := time.Now()

	progress.Step("building metrics batch")
	batch, err := a.runner.BuildBatch(ctx)
	if err != nil {
		return err
	}
	progress.Step("batch ready")
	progress.Done()

	log.Info().
		Int("assets", len(batch.Assets)).
		Dur("duration", time.Since(start)).
		Str("cache", a.config.Output.MetricsFile).
		Msg("scan complete")

	return nil
}
