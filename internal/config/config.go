package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/assetrank/internal/domain/allocation"
	"github.com/sawpanic/assetrank/internal/domain/rank"
	"github.com/sawpanic/assetrank/internal/domain/scoring"
)

// Config is the complete engine configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Providers ProvidersConfig `yaml:"providers"`
	Output    OutputConfig    `yaml:"output"`
	Postgres  PostgresConfig  `yaml:"postgres"`
}

// EngineConfig controls scoring, ranking and allocation behavior.
type EngineConfig struct {
	TopN               int    `yaml:"top_n"`
	VolatilityPolicy   string `yaml:"volatility_policy"`   // strict | zero_fill
	AllocationStrategy string `yaml:"allocation_strategy"` // rank_weighted | equal_split
	Workers            int    `yaml:"workers"`
}

// ProvidersConfig holds per-upstream settings.
type ProvidersConfig struct {
	Brokerage BrokerageConfig `yaml:"brokerage"`
	OKX       OKXConfig       `yaml:"okx"`
	CoinGecko CoinGeckoConfig `yaml:"coingecko"`
}

type BrokerageConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"` // ASSETRANK_BROKERAGE_TOKEN overrides
	TimeoutSecs    int    `yaml:"timeout_secs"`
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	RPS            int    `yaml:"rps"`
	MaxAssets      int    `yaml:"max_assets"` // 0 means the whole universe
}

type OKXConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	WSURL          string `yaml:"ws_url"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	RPS            int    `yaml:"rps"`
	MaxAssets      int    `yaml:"max_assets"`
}

type CoinGeckoConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BaseURL      string `yaml:"base_url"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	MaxRetries   int    `yaml:"max_retries"`
	RPS          int    `yaml:"rps"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
}

// OutputConfig names the scan cache and the allocation report.
type OutputConfig struct {
	MetricsFile   string `yaml:"metrics_file"`
	PortfolioFile string `yaml:"portfolio_file"`
}

// PostgresConfig enables run history persistence.
type PostgresConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			TopN:               rank.DefaultTopN,
			VolatilityPolicy:   string(scoring.VolatilityStrict),
			AllocationStrategy: string(allocation.RankWeightedBounded),
			Workers:            4,
		},
		Providers: ProvidersConfig{
			Brokerage: BrokerageConfig{
				Enabled:        true,
				BaseURL:        "https://invest-public-api.tbank.ru/rest",
				TimeoutSecs:    30,
				MaxRetries:     3,
				MaxConcurrency: 4,
				RPS:            2,
			},
			OKX: OKXConfig{
				Enabled:        true,
				BaseURL:        "https://www.okx.com",
				WSURL:          "wss://ws.okx.com:8443/ws/v5/public",
				TimeoutSecs:    30,
				MaxRetries:     3,
				MaxConcurrency: 4,
				RPS:            5,
			},
			CoinGecko: CoinGeckoConfig{
				Enabled:      true,
				BaseURL:      "https://api.coingecko.com/api/v3",
				TimeoutSecs:  30,
				MaxRetries:   3,
				RPS:          1,
				CacheTTLSecs: 3600,
			},
		},
		Output: OutputConfig{
			MetricsFile:   "all_metrics.csv",
			PortfolioFile: "portfolio.csv",
		},
		Postgres: PostgresConfig{
			TimeoutSecs: 10,
		},
	}
}

// Load reads configuration from a YAML file layered over Default. The
// brokerage token can always be supplied via ASSETRANK_BROKERAGE_TOKEN
// instead of the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if token := os.Getenv("ASSETRANK_BROKERAGE_TOKEN"); token != "" {
		config.Providers.Brokerage.Token = token
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate ensures the configuration is consistent.
func (c *Config) Validate() error {
	if c.Engine.TopN <= 0 {
		return fmt.Errorf("engine top_n must be positive, got %d", c.Engine.TopN)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine workers must be positive, got %d", c.Engine.Workers)
	}

	switch scoring.VolatilityPolicy(c.Engine.VolatilityPolicy) {
	case scoring.VolatilityStrict, scoring.VolatilityZeroFill:
	default:
		return fmt.Errorf("unknown volatility_policy: %s", c.Engine.VolatilityPolicy)
	}

	switch allocation.Strategy(c.Engine.AllocationStrategy) {
	case allocation.RankWeightedBounded, allocation.EqualSplitCapped:
	default:
		return fmt.Errorf("unknown allocation_strategy: %s", c.Engine.AllocationStrategy)
	}

	if c.Output.MetricsFile == "" {
		return fmt.Errorf("output metrics_file cannot be empty")
	}
	if c.Output.PortfolioFile == "" {
		return fmt.Errorf("output portfolio_file cannot be empty")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres dsn required when postgres is enabled")
	}
	return nil
}

func (b BrokerageConfig) Timeout() time.Duration  { return time.Duration(b.TimeoutSecs) * time.Second }
func (o OKXConfig) Timeout() time.Duration        { return time.Duration(o.TimeoutSecs) * time.Second }
func (g CoinGeckoConfig) Timeout() time.Duration  { return time.Duration(g.TimeoutSecs) * time.Second }
func (g CoinGeckoConfig) CacheTTL() time.Duration { return time.Duration(g.CacheTTLSecs) * time.Second }
func (p PostgresConfig) Timeout() time.Duration   { return time.Duration(p.TimeoutSecs) * time.Second }
