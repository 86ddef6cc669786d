package rank

import (
	"sort"

	"github.com/sawpanic/assetrank/internal/domain/asset"
)

// MinLiquidity is the fixed liquidity floor. Units follow the liquidity
// metric itself (mean traded volume for equities, 24h base volume for
// crypto); the threshold is not currency-normalized across classes.
const MinLiquidity = 10_000

// DefaultTopN caps how many assets reach the allocator.
const DefaultTopN = 10

// Rank orders ratings descending by score (stable: equal scores keep input
// order), drops illiquid assets, and truncates to min(topN, survivors).
// Ratings with an unavailable score cannot be ordered and are dropped first.
func Rank(ratings []asset.Rating, topN int) []asset.Rating {
	if topN <= 0 {
		topN = DefaultTopN
	}

	sorted := make([]asset.Rating, 0, len(ratings))
	for _, r := range ratings {
		if r.Score.Valid {
			sorted = append(sorted, r)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score.Value > sorted[j].Score.Value
	})

	liquid := make([]asset.Rating, 0, len(sorted))
	for _, r := range sorted {
		if r.Liquidity >= MinLiquidity {
			liquid = append(liquid, r)
		}
	}

	if len(liquid) > topN {
		liquid = liquid[:topN]
	}
	return liquid
}
