package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/assetrank/internal/application/pipeline"
	"github.com/sawpanic/assetrank/internal/config"
	"github.com/sawpanic/assetrank/internal/data/cache"
	"github.com/sawpanic/assetrank/internal/domain/scoring"
	"github.com/sawpanic/assetrank/internal/infrastructure/providers"
	"github.com/sawpanic/assetrank/internal/net/ratelimit"
	"github.com/sawpanic/assetrank/internal/persistence"
	"github.com/sawpanic/assetrank/internal/persistence/csvstore"
	"github.com/sawpanic/assetrank/internal/persistence/postgres"
)

// app bundles everything a subcommand needs after wiring.
type app struct {
	config *config.Config
	source *providers.Source
	runner *pipeline.Runner
	runs   persistence.PortfolioRepo // nil unless postgres is enabled
	writer *csvstore.PortfolioWriter
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(1, 1)

	var brokerage *providers.BrokerageProvider
	if cfg.Providers.Brokerage.Enabled {
		b := cfg.Providers.Brokerage
		brokerage = providers.NewBrokerageProvider(providers.BrokerageConfig{
			BaseURL:        b.BaseURL,
			Token:          b.Token,
			RequestTimeout: b.Timeout(),
			MaxRetries:     b.MaxRetries,
			MaxConcurrency: b.MaxConcurrency,
		})
		limiter.SetLimit("brokerage", float64(b.RPS), b.RPS)
	}

	var okx *providers.OKXProvider
	if cfg.Providers.OKX.Enabled {
		o := cfg.Providers.OKX
		okx = providers.NewOKXProvider(providers.OKXConfig{
			BaseURL:        o.BaseURL,
			RequestTimeout: o.Timeout(),
			MaxRetries:     o.MaxRetries,
			MaxConcurrency: o.MaxConcurrency,
		})
		limiter.SetLimit("okx", float64(o.RPS), o.RPS)
	}

	var coingecko *providers.CoinGeckoProvider
	if cfg.Providers.CoinGecko.Enabled {
		g := cfg.Providers.CoinGecko
		coingecko = providers.NewCoinGeckoProvider(providers.CoinGeckoConfig{
			BaseURL:        g.BaseURL,
			RequestTimeout: g.Timeout(),
			MaxRetries:     g.MaxRetries,
			CacheTTL:       g.CacheTTL(),
		}, cache.NewAuto())
		limiter.SetLimit("coingecko", float64(g.RPS), g.RPS)
	}

	source := providers.NewSource(brokerage, okx, coingecko, limiter)
	source.MaxEquities = cfg.Providers.Brokerage.MaxAssets
	source.MaxCryptos = cfg.Providers.OKX.MaxAssets

	scorer := scoring.NewScorer(scoring.VolatilityPolicy(cfg.Engine.VolatilityPolicy))
	repo := csvstore.NewMetricsRepo(cfg.Output.MetricsFile)
	runner := pipeline.NewRunner(repo, source, scorer, cfg.Engine.Workers)

	a := &app{
		config: cfg,
		source: source,
		runner: runner,
		writer: csvstore.NewPortfolioWriter(cfg.Output.PortfolioFile),
	}

	if cfg.Postgres.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.runs = postgres.NewPortfolioRepo(db, cfg.Postgres.Timeout())
	}

	return a, nil
}
