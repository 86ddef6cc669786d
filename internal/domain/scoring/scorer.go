package scoring

import "github.com/sawpanic/assetrank/internal/domain/asset"

// VolatilityPolicy controls how an unavailable crypto volatility sub-score
// propagates into the rating.
type VolatilityPolicy string

const (
	// VolatilityStrict invalidates the whole rating when the volatility
	// sub-score is unavailable. Matches the observed model behavior; the
	// other sub-scores default to 0 on unavailability, this one does not.
	VolatilityStrict VolatilityPolicy = "strict"

	// VolatilityZeroFill treats an unavailable volatility sub-score as a
	// zero contribution, uniform with the other sub-scores.
	VolatilityZeroFill VolatilityPolicy = "zero_fill"
)

// Equity model weights.
const (
	equityWeightPE        = 0.4
	equityWeightPB        = 0.3
	equityWeightReturn    = 0.2
	equityWeightLiquidity = 0.1
)

// Crypto model weights.
const (
	cryptoWeightNVT        = 0.3
	cryptoWeightPV         = 0.2
	cryptoWeightReturn     = 0.3
	cryptoWeightLiquidity  = 0.1
	cryptoWeightVolatility = 0.1
)

const liquidityScale = 1_000_000

// Scorer maps a metrics bundle to a single rating. Stateless; the same
// metrics always yield the same rating.
type Scorer struct {
	policy VolatilityPolicy
}

func NewScorer(policy VolatilityPolicy) *Scorer {
	if policy == "" {
		policy = VolatilityStrict
	}
	return &Scorer{policy: policy}
}

// Score dispatches on the asset class.
func (s *Scorer) Score(m asset.Metrics) asset.Rating {
	if m.Class == asset.ClassCrypto {
		return s.scoreCrypto(m)
	}
	return s.scoreEquity(m)
}

func (s *Scorer) scoreEquity(m asset.Metrics) asset.Rating {
	total := equityWeightPE*peScore(m.PriceEarnings) +
		equityWeightPB*pbScore(m.PriceBook) +
		equityWeightReturn*returnScore(m.ReturnPct) +
		equityWeightLiquidity*liquidityScore(m.Liquidity)

	return asset.Rating{
		ID:        m.ID,
		Class:     m.Class,
		Score:     asset.ValidRatio(total),
		Liquidity: m.Liquidity,
	}
}

func (s *Scorer) scoreCrypto(m asset.Metrics) asset.Rating {
	r := asset.Rating{ID: m.ID, Class: m.Class, Liquidity: m.Liquidity}

	vol := volatilityScore(m.VolatilityPct, m.MaxVolatilityPct)
	if !vol.Valid {
		if s.policy == VolatilityStrict {
			// Rating stays unavailable; the ranker drops it.
			return r
		}
		vol = asset.ValidRatio(0)
	}

	total := cryptoWeightNVT*inverseScore(m.NetworkValueToTransactions) +
		cryptoWeightPV*inverseScore(m.PriceToVolume) +
		cryptoWeightReturn*returnScore(m.ReturnPct) +
		cryptoWeightLiquidity*liquidityScore(m.Liquidity) +
		cryptoWeightVolatility*vol.Value

	r.Score = asset.ValidRatio(total)
	return r
}

// peScore: 1 below 15, 0.25 below 25, otherwise 0. Unavailable scores 0.
func peScore(r asset.Ratio) float64 {
	switch {
	case !r.Valid:
		return 0
	case r.Value < 15:
		return 1
	case r.Value < 25:
		return 0.25
	default:
		return 0
	}
}

// pbScore: 1 below 1.5, 0.5 below 3, otherwise 0. Unavailable scores 0.
func pbScore(r asset.Ratio) float64 {
	switch {
	case !r.Valid:
		return 0
	case r.Value < 1.5:
		return 1
	case r.Value < 3:
		return 0.5
	default:
		return 0
	}
}

func returnScore(returnPct float64) float64 {
	return clamp01(returnPct / 10)
}

func liquidityScore(liquidity float64) float64 {
	return clamp01(liquidity / liquidityScale)
}

// inverseScore maps a non-negative ratio into (0,1] via 1/(x+1).
// Unavailable scores 0.
func inverseScore(r asset.Ratio) float64 {
	if !r.Valid {
		return 0
	}
	return 1 / (r.Value + 1)
}

// volatilityScore rewards volatility low relative to the worst observed
// single-period move. Unavailable when no move was observed.
func volatilityScore(volatilityPct, maxVolatilityPct float64) asset.Ratio {
	if maxVolatilityPct <= 0 {
		return asset.Ratio{}
	}
	ratio := volatilityPct / maxVolatilityPct
	if ratio > 1 {
		ratio = 1
	}
	return asset.ValidRatio(1 - ratio)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
