package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/assetrank/internal/domain/allocation"
)

// strategyValue makes allocation.Strategy usable as a CLI flag with
// validation at parse time.
type strategyValue allocation.Strategy

var _ pflag.Value = (*strategyValue)(nil)

func (s *strategyValue) String() string { return string(*s) }
func (s *strategyValue) Type() string   { return "strategy" }

func (s *strategyValue) Set(v string) error {
	switch allocation.Strategy(v) {
	case allocation.RankWeightedBounded, allocation.EqualSplitCapped:
		*s = strategyValue(v)
		return nil
	}
	return fmt.Errorf("must be %q or %q", allocation.RankWeightedBounded, allocation.EqualSplitCapped)
}

func newAllocateCmd() *cobra.Command {
	var capital float64
	var topN int
	strategy := strategyValue(allocation.RankWeightedBounded)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Rank the scored batch and distribute capital",
		Long: `Ranks the cached (or freshly scanned) metrics batch, filters out
illiquid assets and distributes the given capital over the top
positions. The result is written to the portfolio report file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocate(cmd.Context(), capital, allocation.Strategy(strategy), topN)
		},
	}

	cmd.Flags().Float64Var(&capital, "capital", 0, "Capital to distribute (required)")
	cmd.Flags().Var(&strategy, "strategy", "Allocation strategy (rank_weighted|equal_split)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "Positions to hold (0 uses the configured value)")
	cmd.MarkFlagRequired("capital")
	return cmd
}

func runAllocate(ctx context.Context, capital float64, strategy allocation.Strategy, topN int) error {
	if capital <= 0 {
		return fmt.Errorf("capital must be positive, got %g", capital)
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	if topN <= 0 {
		topN = a.config.Engine.TopN
	}

	batch, err := a.runner.BuildBatch(ctx)
	if err != nil {
		return err
	}

	portfolio := a.runner.Allocate(batch, capital, strategy, topN)

	if err := a.writer.Write(portfolio); err != nil {
		return err
	}
	if a.runs != nil {
		if err := a.runs.SaveRun(ctx, portfolio); err != nil {
			return err
		}
	}

	log.Info().
		Str("run_id", portfolio.RunID).
		Int("positions", len(portfolio.Entries)).
		Float64("remaining_capital", portfolio.RemainingCapital).
		Str("report", a.config.Output.PortfolioFile).
		Msg("allocation complete")

	return nil
}
