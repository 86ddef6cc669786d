package allocation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/assetrank/internal/domain/asset"
)

func ranked(n int) []asset.Rating {
	out := make([]asset.Rating, n)
	for i := range out {
		out[i] = asset.Rating{
			ID:        fmt.Sprintf("a%02d", i),
			Score:     asset.ValidRatio(1 - float64(i)/100),
			Liquidity: 50_000,
		}
	}
	return out
}

func TestAllocate_RankWeightedThreeAssets(t *testing.T) {
	// N=3: weights {3,2,1}, total weight 6, raw percentages {50, 33.3, 16.7};
	// the 50 clamps to the 30 cap.
	p := Allocate(ranked(3), 10_000, RankWeightedBounded)

	require.Len(t, p.Entries, 3)

	// Allocations are taken from the clamped pre-renormalization percentages
	// with the commission haircut applied once.
	assert.InDelta(t, 10_000*0.30*0.9996, p.Entries[0].Allocation, 1e-9)
	assert.InDelta(t, 10_000*(100.0/3/100)*0.9996, p.Entries[1].Allocation, 1e-9)
	assert.InDelta(t, 10_000*(100.0/6/100)*0.9996, p.Entries[2].Allocation, 1e-9)

	// Percentages renormalize from {30, 33.33, 16.67} (sum 80) to sum 100.
	var sum float64
	for _, e := range p.Entries {
		sum += e.Percentage
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
	assert.InDelta(t, 30.0/80*100, p.Entries[0].Percentage, 1e-9)

	// Entries keep original rank order.
	assert.Equal(t, "a00", p.Entries[0].Asset)
	assert.Equal(t, "a01", p.Entries[1].Asset)
	assert.Equal(t, "a02", p.Entries[2].Asset)
}

func TestAllocate_PreRenormalizationBounds(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 10} {
		capital := 10_000.0
		p := Allocate(ranked(n), capital, RankWeightedBounded)
		for i, e := range p.Entries {
			// Reconstruct the pre-renormalization percentage from the
			// allocation, which is never renormalized.
			pre := e.Allocation / 0.9996 / capital * 100
			assert.GreaterOrEqual(t, pre, MinPercentage-1e-9, "n=%d i=%d", n, i)
			assert.LessOrEqual(t, pre, MaxPercentage+1e-9, "n=%d i=%d", n, i)
		}
	}
}

func TestAllocate_PercentagesSumToHundred(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 10} {
		p := Allocate(ranked(n), 25_000, RankWeightedBounded)
		var sum float64
		for _, e := range p.Entries {
			sum += e.Percentage
		}
		assert.InDelta(t, 100.0, sum, 1e-9, "n=%d", n)
	}
}

func TestAllocate_SingleAssetClampsToCap(t *testing.T) {
	p := Allocate(ranked(1), 10_000, RankWeightedBounded)

	require.Len(t, p.Entries, 1)
	// Raw 100% clamps to 30%; renormalization then reports it as 100%.
	assert.InDelta(t, 10_000*0.30*0.9996, p.Entries[0].Allocation, 1e-9)
	assert.InDelta(t, 100.0, p.Entries[0].Percentage, 1e-9)
	// Dollar amount and percentage now diverge: observed contract.
	assert.InDelta(t, 10_000-10_000*0.30*0.9996, p.RemainingCapital, 1e-9)
}

func TestAllocate_EqualSplitCapped(t *testing.T) {
	p := Allocate(ranked(2), 10_000, EqualSplitCapped)

	require.Len(t, p.Entries, 2)
	// 100/2 = 50 clamps to 30 for both; renormalized to 50/50.
	for _, e := range p.Entries {
		assert.InDelta(t, 10_000*0.30*0.9996, e.Allocation, 1e-9)
		assert.InDelta(t, 50.0, e.Percentage, 1e-9)
	}

	even := Allocate(ranked(5), 10_000, EqualSplitCapped)
	for _, e := range even.Entries {
		assert.InDelta(t, 20.0, e.Percentage, 1e-9)
	}
}

func TestAllocate_RemainingCapitalIsReportingOnly(t *testing.T) {
	// With many assets the clamped floor keeps admitting entries while any
	// capital remains; the total spent may overshoot the budget.
	p := Allocate(ranked(10), 100, RankWeightedBounded)

	require.Len(t, p.Entries, 10)
	var spent float64
	for _, e := range p.Entries {
		spent += e.Allocation
	}
	assert.InDelta(t, 100-spent, p.RemainingCapital, 1e-9)
}

func TestAllocate_Degenerate(t *testing.T) {
	empty := Allocate(nil, 10_000, RankWeightedBounded)
	assert.Empty(t, empty.Entries)
	assert.InDelta(t, 10_000.0, empty.RemainingCapital, 1e-9)

	broke := Allocate(ranked(3), 0, RankWeightedBounded)
	assert.Empty(t, broke.Entries)
	assert.Zero(t, broke.RemainingCapital)

	negative := Allocate(ranked(3), -5, RankWeightedBounded)
	assert.Empty(t, negative.Entries)
}
