package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/domain/allocation"
	"github.com/sawpanic/assetrank/internal/domain/asset"
	"github.com/sawpanic/assetrank/internal/domain/metrics"
	"github.com/sawpanic/assetrank/internal/domain/rank"
	"github.com/sawpanic/assetrank/internal/domain/scoring"
	"github.com/sawpanic/assetrank/internal/persistence"
	"github.com/sawpanic/assetrank/internal/telemetry"
)

// ObservationSource supplies raw per-asset observations for one scan.
type ObservationSource interface {
	Equities(ctx context.Context) ([]asset.EquityObservation, error)
	Cryptos(ctx context.Context) ([]asset.CryptoObservation, error)
}

// Runner drives the scan -> score -> rank -> allocate pipeline.
type Runner struct {
	repo    persistence.MetricsBatchRepo
	source  ObservationSource
	scorer  *scoring.Scorer
	workers int
}

func NewRunner(repo persistence.MetricsBatchRepo, source ObservationSource, scorer *scoring.Scorer, workers int) *Runner {
	if workers < 1 {
		workers = 4
	}
	return &Runner{
		repo:    repo,
		source:  source,
		scorer:  scorer,
		workers: workers,
	}
}

// BuildBatch returns the scored metrics batch for this scan. A cached batch
// short-circuits ingestion entirely; otherwise observations are fetched,
// scored, and the result is cached for the next run.
func (r *Runner) BuildBatch(ctx context.Context) (*asset.Batch, error) {
	if batch, ok, err := r.repo.LoadCached(ctx); err != nil {
		return nil, fmt.Errorf("failed to load cached batch: %w", err)
	} else if ok {
		telemetry.BatchesBuilt.WithLabelValues("cache").Inc()
		log.Info().Int("assets", len(batch.Assets)).Msg("using cached metrics batch")
		return batch, nil
	}

	batch, err := r.computeFresh(ctx)
	if err != nil {
		return nil, err
	}

	telemetry.BatchesBuilt.WithLabelValues("fresh").Inc()

	if err := r.repo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to cache batch: %w", err)
	}
	return batch, nil
}

func (r *Runner) computeFresh(ctx context.Context) (*asset.Batch, error) {
	start := time.Now()
	defer func() {
		telemetry.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	equities, err := r.source.Equities(ctx)
	if err != nil {
		telemetry.PipelineErrors.WithLabelValues("ingest_equity").Inc()
		return nil, fmt.Errorf("equity ingestion failed: %w", err)
	}
	cryptos, err := r.source.Cryptos(ctx)
	if err != nil {
		telemetry.PipelineErrors.WithLabelValues("ingest_crypto").Inc()
		return nil, fmt.Errorf("crypto ingestion failed: %w", err)
	}

	telemetry.AssetsScanned.WithLabelValues(string(asset.ClassEquity)).Add(float64(len(equities)))
	telemetry.AssetsScanned.WithLabelValues(string(asset.ClassCrypto)).Add(float64(len(cryptos)))

	// Equities first, then cryptos, preserving source order within each
	// class regardless of which worker scored them.
	scored := make([]asset.ScoredMetrics, len(equities)+len(cryptos))

	type job struct {
		index int
		run   func() asset.Metrics
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				m := j.run()
				scored[j.index] = asset.ScoredMetrics{
					Metrics: m,
					Rating:  r.scorer.Score(m),
				}
			}
		}()
	}

	for i, obs := range equities {
		obs := obs
		jobs <- job{index: i, run: func() asset.Metrics { return metrics.Equity(obs) }}
	}
	for i, obs := range cryptos {
		obs := obs
		jobs <- job{index: len(equities) + i, run: func() asset.Metrics { return metrics.Crypto(obs) }}
	}
	close(jobs)
	wg.Wait()

	log.Info().
		Int("equities", len(equities)).
		Int("cryptos", len(cryptos)).
		Dur("duration", time.Since(start)).
		Msg("metrics batch computed")

	return &asset.Batch{Assets: scored}, nil
}

// Allocate ranks the batch and distributes capital over the survivors.
func (r *Runner) Allocate(batch *asset.Batch, capital float64, strategy allocation.Strategy, topN int) asset.Portfolio {
	ranked := rank.Rank(batch.Ratings(), topN)

	portfolio := allocation.Allocate(ranked, capital, strategy)
	portfolio.RunID = uuid.NewString()
	portfolio.GeneratedAt = time.Now().UTC()

	telemetry.PortfoliosAllocated.Inc()

	log.Info().
		Str("run_id", portfolio.RunID).
		Int("positions", len(portfolio.Entries)).
		Float64("remaining_capital", portfolio.RemainingCapital).
		Msg("portfolio allocated")

	return portfolio
}
