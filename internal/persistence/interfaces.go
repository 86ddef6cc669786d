package persistence

import (
	"context"

	"github.com/sawpanic/assetrank/internal/domain/asset"
)

// MetricsBatchRepo caches one scan's computed metrics batch. LoadCached
// reports ok=false when no usable batch exists; the pipeline then computes
// a fresh one and Saves it.
type MetricsBatchRepo interface {
	LoadCached(ctx context.Context) (*asset.Batch, bool, error)
	Save(ctx context.Context, batch *asset.Batch) error
}

// PortfolioRepo records allocation runs.
type PortfolioRepo interface {
	SaveRun(ctx context.Context, portfolio asset.Portfolio) error
	LatestRun(ctx context.Context) (asset.Portfolio, error)
}

// PortfolioWriter renders one portfolio to its output artifact.
type PortfolioWriter interface {
	Write(portfolio asset.Portfolio) error
}
