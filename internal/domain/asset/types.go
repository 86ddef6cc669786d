package asset

import "time"

// Class selects which scoring model applies to an observation.
type Class string

const (
	ClassEquity Class = "equity"
	ClassCrypto Class = "crypto"
)

// Candle is one daily OHLCV bar. Series are chronological, oldest first.
// An empty series is valid input and degrades to zero-valued metrics.
type Candle struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// EquityObservation is the raw per-share input fetched from the brokerage.
type EquityObservation struct {
	Ticker       string
	IssueSize    int64   // issued share count
	NominalValue float64 // nominal value per share
	Candles      []Candle
}

// CryptoObservation is the raw per-instrument input assembled from the
// exchange ticker/candles plus aggregator-supplied supply and volume data.
type CryptoObservation struct {
	InstID            string // e.g. "BTC-USDT"
	Vol24h            float64
	LastPrice         float64
	Candles           []Candle
	TxVolumeUSD       float64 // daily on-chain transaction volume, USD
	CirculatingSupply float64
}

// Ratio is a derived ratio that may be unavailable when its denominator is
// zero or missing. The zero value means unavailable. Unavailable is distinct
// from a ratio that computed to zero; the scorer treats the two differently.
type Ratio struct {
	Value float64
	Valid bool
}

// ValidRatio wraps a computed value.
func ValidRatio(v float64) Ratio { return Ratio{Value: v, Valid: true} }

// Metrics is the flat bundle of raw financial signals derived from one
// observation. Fields that do not apply to the asset class stay zero-valued.
type Metrics struct {
	ID    string
	Class Class

	ReturnPct     float64
	Liquidity     float64
	VolatilityPct float64

	// Equity ratios.
	PriceEarnings Ratio
	PriceBook     Ratio

	// Crypto ratios.
	NetworkValueToTransactions Ratio
	PriceToVolume              Ratio

	// MaxVolatilityPct is the largest absolute one-period move across the
	// candle series, in percent. Consumed only by the crypto volatility
	// sub-score; zero when the series has fewer than two points.
	MaxVolatilityPct float64
}

// Rating is the single scalar fitness score for one asset. Score can be
// unavailable for crypto assets under the strict volatility policy.
type Rating struct {
	ID        string
	Class     Class
	Score     Ratio
	Liquidity float64
}

// ScoredMetrics pairs extracted metrics with the rating derived from them.
type ScoredMetrics struct {
	Metrics Metrics
	Rating  Rating
}

// Batch is one full scan's worth of scored assets, in ingestion order.
type Batch struct {
	Assets []ScoredMetrics
}

// Ratings returns the rating records of the batch in input order.
func (b *Batch) Ratings() []Rating {
	out := make([]Rating, 0, len(b.Assets))
	for _, a := range b.Assets {
		out = append(out, a.Rating)
	}
	return out
}

// PortfolioEntry is one allocated position. Percentage is mutated exactly
// once, during the allocator's renormalization pass.
type PortfolioEntry struct {
	Asset      string  `json:"asset" db:"asset"`
	Rating     float64 `json:"rating" db:"rating"`
	Allocation float64 `json:"allocation" db:"allocation"`
	Percentage float64 `json:"percentage" db:"percentage"`
}

// Portfolio is the allocator's output: entries ordered by rank plus the
// residual unallocated capital. Built once per run, then immutable.
type Portfolio struct {
	RunID            string           `json:"run_id"`
	GeneratedAt      time.Time        `json:"generated_at"`
	TotalCapital     float64          `json:"total_capital"`
	Entries          []PortfolioEntry `json:"entries"`
	RemainingCapital float64          `json:"remaining_capital"`
}
