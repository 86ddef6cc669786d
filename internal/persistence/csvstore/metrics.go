package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/domain/asset"
	fsio "github.com/sawpanic/assetrank/internal/io"
)

// metricsHeader is the unified on-disk schema for both asset classes.
// Ratio columns hold the empty string when the ratio is unavailable,
// which round-trips the unavailable state distinctly from zero.
var metricsHeader = []string{
	"id", "class", "return_pct", "liquidity", "volatility_pct",
	"price_earnings", "price_book", "nvt", "price_to_volume",
	"max_volatility_pct", "rating",
}

// MetricsRepo persists one scan's metrics batch as a CSV file. A missing
// file means no cached batch.
type MetricsRepo struct {
	path string
}

func NewMetricsRepo(path string) *MetricsRepo {
	return &MetricsRepo{path: path}
}

// LoadCached reads the batch written by a previous scan. ok is false when
// the file does not exist yet.
func (r *MetricsRepo) LoadCached(ctx context.Context) (*asset.Batch, bool, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metrics cache: %w", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse metrics cache: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	batch := &asset.Batch{Assets: make([]asset.ScoredMetrics, 0, len(rows)-1)}
	for i, row := range rows[1:] {
		scored, err := rowToScored(row)
		if err != nil {
			return nil, false, fmt.Errorf("metrics cache row %d: %w", i+2, err)
		}
		batch.Assets = append(batch.Assets, scored)
	}

	log.Debug().
		Str("path", r.path).
		Int("assets", len(batch.Assets)).
		Msg("metrics batch loaded from cache")

	return batch, true, nil
}

// Save writes the batch atomically, replacing any previous cache.
func (r *MetricsRepo) Save(ctx context.Context, batch *asset.Batch) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(metricsHeader); err != nil {
		return err
	}
	for _, a := range batch.Assets {
		if err := w.Write(scoredToRow(a)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := fsio.WriteFileAtomic(r.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write metrics cache: %w", err)
	}

	log.Info().
		Str("path", r.path).
		Int("assets", len(batch.Assets)).
		Msg("metrics batch saved")

	return nil
}

func scoredToRow(a asset.ScoredMetrics) []string {
	m := a.Metrics
	return []string{
		m.ID,
		string(m.Class),
		formatFloat(m.ReturnPct),
		formatFloat(m.Liquidity),
		formatFloat(m.VolatilityPct),
		formatRatio(m.PriceEarnings),
		formatRatio(m.PriceBook),
		formatRatio(m.NetworkValueToTransactions),
		formatRatio(m.PriceToVolume),
		formatFloat(m.MaxVolatilityPct),
		formatRatio(a.Rating.Score),
	}
}

func rowToScored(row []string) (asset.ScoredMetrics, error) {
	if len(row) != len(metricsHeader) {
		return asset.ScoredMetrics{}, fmt.Errorf("expected %d columns, got %d", len(metricsHeader), len(row))
	}

	var scored asset.ScoredMetrics
	var err error

	m := &scored.Metrics
	m.ID = row[0]
	m.Class = asset.Class(row[1])

	if m.ReturnPct, err = parseFloatCol(row[2]); err != nil {
		return asset.ScoredMetrics{}, err
	}
	if m.Liquidity, err = parseFloatCol(row[3]); err != nil {
		return asset.ScoredMetrics{}, err
	}
	if m.VolatilityPct, err = parseFloatCol(row[4]); err != nil {
		return asset.ScoredMetrics{}, err
	}
	if m.PriceEarnings, err = parseRatioCol(row[5]); err != nil {
		return asset.ScoredMetrics{}, err
	}
	if m.PriceBook, err = parseRatioCol(row[6]); err != nil {
		return asset.ScoredMetrics{}, err
	}
	if m.NetworkValueToTransactions, err = parseRatioCol(row[7]); err != nil {
		return asset.ScoredMetrics{}, err
	}
	if m.PriceToVolume, err = parseRatioCol(row[8]); err != nil {
		return asset.ScoredMetrics{}, err
	}
	if m.MaxVolatilityPct, err = parseFloatCol(row[9]); err != nil {
		return asset.ScoredMetrics{}, err
	}

	score, err := parseRatioCol(row[10])
	if err != nil {
		return asset.ScoredMetrics{}, err
	}

	scored.Rating = asset.Rating{
		ID:        m.ID,
		Class:     m.Class,
		Score:     score,
		Liquidity: m.Liquidity,
	}
	return scored, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatRatio(r asset.Ratio) string {
	if !r.Valid {
		return ""
	}
	return formatFloat(r.Value)
}

func parseFloatCol(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseRatioCol(s string) (asset.Ratio, error) {
	if s == "" {
		return asset.Ratio{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return asset.Ratio{}, err
	}
	return asset.ValidRatio(v), nil
}
