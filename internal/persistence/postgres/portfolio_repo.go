package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/assetrank/internal/domain/asset"
	"github.com/sawpanic/assetrank/internal/persistence"
)

// portfolioRepo implements PortfolioRepo for PostgreSQL. Each allocation
// run writes one portfolio_runs row plus its portfolio_entries rows in a
// single transaction.
type portfolioRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPortfolioRepo(db *sqlx.DB, timeout time.Duration) persistence.PortfolioRepo {
	return &portfolioRepo{
		db:      db,
		timeout: timeout,
	}
}

// SaveRun records one allocation run atomically.
func (r *portfolioRepo) SaveRun(ctx context.Context, portfolio asset.Portfolio) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_runs (run_id, generated_at, total_capital, remaining_capital)
		VALUES ($1, $2, $3, $4)`,
		portfolio.RunID, portfolio.GeneratedAt, portfolio.TotalCapital, portfolio.RemainingCapital)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate run %s: %w", portfolio.RunID, err)
		}
		return fmt.Errorf("failed to insert portfolio run: %w", err)
	}

	for rank, entry := range portfolio.Entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO portfolio_entries (run_id, rank, asset, rating, allocation, percentage)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			portfolio.RunID, rank+1, entry.Asset, entry.Rating, entry.Allocation, entry.Percentage)
		if err != nil {
			return fmt.Errorf("failed to insert portfolio entry %s: %w", entry.Asset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit portfolio run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent allocation run with its entries in
// rank order. sql.ErrNoRows surfaces when no run exists yet.
func (r *portfolioRepo) LatestRun(ctx context.Context) (asset.Portfolio, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run struct {
		RunID            string    `db:"run_id"`
		GeneratedAt      time.Time `db:"generated_at"`
		TotalCapital     float64   `db:"total_capital"`
		RemainingCapital float64   `db:"remaining_capital"`
	}
	err := r.db.GetContext(ctx, &run, `
		SELECT run_id, generated_at, total_capital, remaining_capital
		FROM portfolio_runs
		ORDER BY generated_at DESC
		LIMIT 1`)
	if err != nil {
		if err == sql.ErrNoRows {
			return asset.Portfolio{}, err
		}
		return asset.Portfolio{}, fmt.Errorf("failed to query latest run: %w", err)
	}

	var entries []asset.PortfolioEntry
	err = r.db.SelectContext(ctx, &entries, `
		SELECT asset, rating, allocation, percentage
		FROM portfolio_entries
		WHERE run_id = $1
		ORDER BY rank ASC`, run.RunID)
	if err != nil {
		return asset.Portfolio{}, fmt.Errorf("failed to query run entries: %w", err)
	}

	return asset.Portfolio{
		RunID:            run.RunID,
		GeneratedAt:      run.GeneratedAt,
		TotalCapital:     run.TotalCapital,
		Entries:          entries,
		RemainingCapital: run.RemainingCapital,
	}, nil
}
