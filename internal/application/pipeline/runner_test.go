package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/assetrank/internal/domain/allocation"
	"github.com/sawpanic/assetrank/internal/domain/asset"
	"github.com/sawpanic/assetrank/internal/domain/scoring"
)

type memRepo struct {
	mu    sync.Mutex
	batch *asset.Batch
	saves int
}

func (r *memRepo) LoadCached(ctx context.Context) (*asset.Batch, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.batch == nil {
		return nil, false, nil
	}
	return r.batch, true, nil
}

func (r *memRepo) Save(ctx context.Context, batch *asset.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batch = batch
	r.saves++
	return nil
}

type fakeSource struct {
	mu       sync.Mutex
	calls    int
	equities []asset.EquityObservation
	cryptos  []asset.CryptoObservation
	err      error
}

func (s *fakeSource) Equities(ctx context.Context) ([]asset.EquityObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.equities, s.err
}

func (s *fakeSource) Cryptos(ctx context.Context) ([]asset.CryptoObservation, error) {
	return s.cryptos, nil
}

func candles(closes ...float64) []asset.Candle {
	out := make([]asset.Candle, len(closes))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = asset.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return out
}

func testSource(n int) *fakeSource {
	src := &fakeSource{}
	for i := 0; i < n; i++ {
		src.equities = append(src.equities, asset.EquityObservation{
			Ticker:       fmt.Sprintf("EQ%02d", i),
			IssueSize:    1000,
			NominalValue: 5,
			Candles:      candles(100, 110),
		})
	}
	src.cryptos = append(src.cryptos, asset.CryptoObservation{
		InstID:            "BTC-USDT",
		Vol24h:            2_000_000,
		LastPrice:         50_000,
		Candles:           candles(100, 110, 99),
		TxVolumeUSD:       1_000_000,
		CirculatingSupply: 19_000_000,
	})
	return src
}

func TestRunner_BuildBatch_PreservesSourceOrder(t *testing.T) {
	repo := &memRepo{}
	src := testSource(8)
	runner := NewRunner(repo, src, scoring.NewScorer(scoring.VolatilityZeroFill), 4)

	batch, err := runner.BuildBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Assets, 9)

	// Equities first in source order, then cryptos, no matter which worker
	// scored each observation.
	for i := 0; i < 8; i++ {
		assert.Equal(t, fmt.Sprintf("EQ%02d", i), batch.Assets[i].Metrics.ID)
		assert.Equal(t, asset.ClassEquity, batch.Assets[i].Metrics.Class)
	}
	assert.Equal(t, "BTC-USDT", batch.Assets[8].Metrics.ID)
	assert.Equal(t, asset.ClassCrypto, batch.Assets[8].Metrics.Class)

	assert.Equal(t, 1, repo.saves, "fresh batch is cached")
}

func TestRunner_BuildBatch_IsDeterministicAcrossWorkerCounts(t *testing.T) {
	build := func(workers int) *asset.Batch {
		runner := NewRunner(&memRepo{}, testSource(16), scoring.NewScorer(scoring.VolatilityStrict), workers)
		batch, err := runner.BuildBatch(context.Background())
		require.NoError(t, err)
		return batch
	}

	assert.Equal(t, build(1).Assets, build(8).Assets)
}

func TestRunner_BuildBatch_CacheShortCircuitsIngestion(t *testing.T) {
	repo := &memRepo{}
	src := testSource(2)
	runner := NewRunner(repo, src, scoring.NewScorer(scoring.VolatilityStrict), 2)
	ctx := context.Background()

	first, err := runner.BuildBatch(ctx)
	require.NoError(t, err)
	second, err := runner.BuildBatch(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Assets, second.Assets)
	assert.Equal(t, 1, src.calls, "second build must not hit the source")
	assert.Equal(t, 1, repo.saves)
}

func TestRunner_BuildBatch_PropagatesIngestionErrors(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("upstream down")}
	runner := NewRunner(&memRepo{}, src, scoring.NewScorer(scoring.VolatilityStrict), 2)

	_, err := runner.BuildBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equity ingestion failed")
}

func TestRunner_Allocate(t *testing.T) {
	runner := NewRunner(&memRepo{}, testSource(3), scoring.NewScorer(scoring.VolatilityZeroFill), 2)

	batch, err := runner.BuildBatch(context.Background())
	require.NoError(t, err)

	portfolio := runner.Allocate(batch, 10_000, allocation.RankWeightedBounded, 10)

	assert.NotEmpty(t, portfolio.RunID)
	assert.False(t, portfolio.GeneratedAt.IsZero())
	assert.InDelta(t, 10_000, portfolio.TotalCapital, 1e-9)
	assert.NotEmpty(t, portfolio.Entries)

	sum := 0.0
	for _, entry := range portfolio.Entries {
		sum += entry.Percentage
	}
	assert.InDelta(t, 100, sum, 1e-9)
}
