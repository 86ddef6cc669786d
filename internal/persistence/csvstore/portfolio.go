package csvstore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/domain/asset"
	fsio "github.com/sawpanic/assetrank/internal/io"
)

var portfolioHeader = []string{"Asset", "Rating", "Allocation ($)", "Percentage (%)"}

// PortfolioWriter renders an allocation run to a CSV report.
type PortfolioWriter struct {
	path string
}

func NewPortfolioWriter(path string) *PortfolioWriter {
	return &PortfolioWriter{path: path}
}

// Write replaces the report file atomically with the given portfolio,
// one row per position in rank order.
func (w *PortfolioWriter) Write(portfolio asset.Portfolio) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(portfolioHeader); err != nil {
		return err
	}
	for _, entry := range portfolio.Entries {
		row := []string{
			entry.Asset,
			strconv.FormatFloat(entry.Rating, 'f', 4, 64),
			strconv.FormatFloat(entry.Allocation, 'f', 2, 64),
			strconv.FormatFloat(entry.Percentage, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if err := fsio.WriteFileAtomic(w.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write portfolio report: %w", err)
	}

	log.Info().
		Str("path", w.path).
		Str("run_id", portfolio.RunID).
		Int("positions", len(portfolio.Entries)).
		Msg("portfolio report written")

	return nil
}
