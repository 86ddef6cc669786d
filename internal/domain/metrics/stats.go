package metrics

import (
	"math"

	"github.com/sawpanic/assetrank/internal/domain/asset"
)

func closes(candles []asset.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.Close)
	}
	return out
}

// pctChanges returns period-over-period fractional changes. Periods whose
// previous close is zero are skipped rather than divided through.
func pctChanges(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

// returnPct is the first-to-last percentage change, zero for empty series or
// a zero first price.
func returnPct(prices []float64) float64 {
	if len(prices) == 0 || prices[0] == 0 {
		return 0
	}
	return (prices[len(prices)-1] - prices[0]) / prices[0] * 100
}

// stddev is the sample standard deviation. Fewer than two samples yield zero.
func stddev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func maxAbs(xs []float64) float64 {
	var max float64
	for _, x := range xs {
		if a := math.Abs(x); a > max {
			max = a
		}
	}
	return max
}
