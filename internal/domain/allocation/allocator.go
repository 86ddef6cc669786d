package allocation

import "github.com/sawpanic/assetrank/internal/domain/asset"

// Per-asset allocation bounds, in percent of total capital.
const (
	MinPercentage = 1.0
	MaxPercentage = 30.0
)

// CommissionRate is the fixed transaction-cost haircut, applied once per
// allocation (never compounded).
const CommissionRate = 0.0004

// Strategy selects how percentages are assigned before bounding.
type Strategy string

const (
	// RankWeightedBounded assigns descending integer weights by rank:
	// rank 0 gets weight N, rank N-1 gets weight 1.
	RankWeightedBounded Strategy = "rank_weighted"

	// EqualSplitCapped splits capital evenly across the N assets, subject
	// to the same per-asset bounds.
	EqualSplitCapped Strategy = "equal_split"
)

// Allocate distributes capital across the ranked assets under the fixed
// min/max bounds, applies the commission haircut, and renormalizes the
// recorded percentages to sum to exactly 100.
//
// Two quirks of the observed contract are reproduced deliberately:
//   - remaining capital only gates admission of the next entry; individual
//     allocations are never reduced to fit, so the total spent can overshoot
//     the budget and RemainingCapital can go negative;
//   - only percentages are renormalized, dollar allocations keep their
//     pre-renormalization values, so the two can diverge.
//
// N=0 or capital <= 0 return an empty portfolio with the capital untouched.
func Allocate(ranked []asset.Rating, capital float64, strategy Strategy) asset.Portfolio {
	p := asset.Portfolio{
		TotalCapital:     capital,
		RemainingCapital: capital,
	}

	n := len(ranked)
	if n == 0 || capital <= 0 {
		return p
	}

	totalWeight := float64(n*(n+1)) / 2
	p.Entries = make([]asset.PortfolioEntry, 0, n)

	for i, r := range ranked {
		if p.RemainingCapital <= 0 {
			break
		}

		var percentage float64
		switch strategy {
		case EqualSplitCapped:
			percentage = 100 / float64(n)
		default:
			weight := float64(n - i)
			percentage = weight / totalWeight * 100
		}
		percentage = clamp(percentage, MinPercentage, MaxPercentage)

		allocated := capital * (percentage / 100) * (1 - CommissionRate)

		p.Entries = append(p.Entries, asset.PortfolioEntry{
			Asset:      r.ID,
			Rating:     r.Score.Value,
			Allocation: allocated,
			Percentage: percentage,
		})
		p.RemainingCapital -= allocated
	}

	renormalize(p.Entries)
	return p
}

// renormalize scales the percentage fields so they sum to exactly 100.
func renormalize(entries []asset.PortfolioEntry) {
	var total float64
	for _, e := range entries {
		total += e.Percentage
	}
	if total == 0 {
		return
	}
	for i := range entries {
		entries[i].Percentage = entries[i].Percentage / total * 100
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
