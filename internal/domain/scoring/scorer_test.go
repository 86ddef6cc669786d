package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/assetrank/internal/domain/asset"
)

func TestPEScoreBoundaries(t *testing.T) {
	cases := []struct {
		name string
		pe   asset.Ratio
		want float64
	}{
		{"below cheap threshold", asset.ValidRatio(14.99), 1},
		{"exactly 15", asset.ValidRatio(15), 0.25},
		{"just above 15", asset.ValidRatio(15.01), 0.25},
		{"just below 25", asset.ValidRatio(24.99), 0.25},
		{"exactly 25", asset.ValidRatio(25), 0},
		{"just above 25", asset.ValidRatio(25.01), 0},
		{"unavailable", asset.Ratio{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, peScore(tc.pe), 1e-9)
		})
	}
}

func TestPBScoreBoundaries(t *testing.T) {
	cases := []struct {
		name string
		pb   asset.Ratio
		want float64
	}{
		{"below 1.5", asset.ValidRatio(1.49), 1},
		{"exactly 1.5", asset.ValidRatio(1.5), 0.5},
		{"just below 3", asset.ValidRatio(2.99), 0.5},
		{"exactly 3", asset.ValidRatio(3), 0},
		{"unavailable", asset.Ratio{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, pbScore(tc.pb), 1e-9)
		})
	}
}

func TestSubScoresStayBounded(t *testing.T) {
	for _, ret := range []float64{-100, -0.01, 0, 5, 10, 10.01, 1e9} {
		s := returnScore(ret)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
	for _, liq := range []float64{0, 1, 999_999, 1_000_000, 1e12} {
		s := liquidityScore(liq)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
	for _, v := range []float64{0, 0.5, 9, 1e9} {
		s := inverseScore(asset.ValidRatio(v))
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestScoreEquity_PerfectAsset(t *testing.T) {
	// P/E 10 -> 1, P/B 1.0 -> 1, return 20% -> 1, liquidity 2M -> 1
	m := asset.Metrics{
		ID:            "SBER",
		Class:         asset.ClassEquity,
		ReturnPct:     20,
		Liquidity:     2_000_000,
		PriceEarnings: asset.ValidRatio(10),
		PriceBook:     asset.ValidRatio(1.0),
	}

	r := NewScorer(VolatilityStrict).Score(m)

	require.True(t, r.Score.Valid)
	assert.InDelta(t, 1.0, r.Score.Value, 1e-9)
	assert.Equal(t, m.Liquidity, r.Liquidity)
}

func TestScoreCrypto_ReferenceScenario(t *testing.T) {
	// NVT 9 -> 0.1, P/V 1 -> 0.5, return 5% -> 0.5, liquidity 500k -> 0.5,
	// volatility 5 of max 10 -> 0.5. Total 0.38.
	m := asset.Metrics{
		ID:                         "BTC-USDT",
		Class:                      asset.ClassCrypto,
		ReturnPct:                  5,
		Liquidity:                  500_000,
		VolatilityPct:              5,
		MaxVolatilityPct:           10,
		NetworkValueToTransactions: asset.ValidRatio(9),
		PriceToVolume:              asset.ValidRatio(1),
	}

	r := NewScorer(VolatilityStrict).Score(m)

	require.True(t, r.Score.Valid)
	assert.InDelta(t, 0.38, r.Score.Value, 1e-9)
}

func TestScoreCrypto_StrictPolicyInvalidatesRating(t *testing.T) {
	m := asset.Metrics{
		ID:            "FLAT-USDT",
		Class:         asset.ClassCrypto,
		ReturnPct:     5,
		Liquidity:     500_000,
		PriceToVolume: asset.ValidRatio(1),
		// MaxVolatilityPct zero: volatility sub-score unavailable
	}

	r := NewScorer(VolatilityStrict).Score(m)
	assert.False(t, r.Score.Valid, "strict policy must null the whole rating")

	zf := NewScorer(VolatilityZeroFill).Score(m)
	require.True(t, zf.Score.Valid)
	// same model with volatility contributing 0
	assert.InDelta(t, 0.2*0.5+0.3*0.5+0.1*0.5, zf.Score.Value, 1e-9)
}

func TestScoreCrypto_UnavailableRatiosContributeZero(t *testing.T) {
	m := asset.Metrics{
		ID:               "THIN-USDT",
		Class:            asset.ClassCrypto,
		ReturnPct:        20, // clamped to 1
		Liquidity:        0,
		VolatilityPct:    1,
		MaxVolatilityPct: 2,
	}

	r := NewScorer(VolatilityStrict).Score(m)

	require.True(t, r.Score.Valid)
	// only return (0.3*1) and volatility (0.1*0.5) contribute
	assert.InDelta(t, 0.35, r.Score.Value, 1e-9)
}

func TestScoreIsIdempotent(t *testing.T) {
	m := asset.Metrics{
		ID:            "GAZP",
		Class:         asset.ClassEquity,
		ReturnPct:     7.3,
		Liquidity:     123_456,
		PriceEarnings: asset.ValidRatio(18.2),
		PriceBook:     asset.ValidRatio(2.7),
	}

	s := NewScorer(VolatilityStrict)
	first := s.Score(m)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, s.Score(m))
	}
}

func TestRatingStaysInUnitInterval(t *testing.T) {
	// Convex combination of [0,1] sub-scores must stay in [0,1].
	ratios := []asset.Ratio{{}, asset.ValidRatio(0), asset.ValidRatio(1.5), asset.ValidRatio(14.99), asset.ValidRatio(25), asset.ValidRatio(1e6)}
	returns := []float64{-50, 0, 5, 10, 500}
	liqs := []float64{0, 9_999, 10_000, 1_000_000, 1e9}

	s := NewScorer(VolatilityStrict)
	for _, pe := range ratios {
		for _, pb := range ratios {
			for _, ret := range returns {
				for _, liq := range liqs {
					m := asset.Metrics{Class: asset.ClassEquity, PriceEarnings: pe, PriceBook: pb, ReturnPct: ret, Liquidity: liq}
					r := s.Score(m)
					require.True(t, r.Score.Valid)
					assert.GreaterOrEqual(t, r.Score.Value, 0.0)
					assert.LessOrEqual(t, r.Score.Value, 1.0)
				}
			}
		}
	}
}
