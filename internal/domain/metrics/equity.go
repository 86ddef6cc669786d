package metrics

import "github.com/sawpanic/assetrank/internal/domain/asset"

// marginAssumption approximates net income as a flat fraction of market cap.
// A deliberate simplification, not a real fundamental.
const marginAssumption = 0.1

// Equity derives the raw equity metrics bundle from one observation.
// Pure function, safe to call concurrently per asset.
func Equity(obs asset.EquityObservation) asset.Metrics {
	m := asset.Metrics{ID: obs.Ticker, Class: asset.ClassEquity}

	prices := closes(obs.Candles)
	m.ReturnPct = returnPct(prices)

	var lastPrice float64
	if len(prices) > 0 {
		lastPrice = prices[len(prices)-1]
	}

	if len(obs.Candles) > 0 {
		var sum float64
		for _, c := range obs.Candles {
			sum += c.Volume
		}
		m.Liquidity = sum / float64(len(obs.Candles))
	}

	marketCap := lastPrice * float64(obs.IssueSize)
	netIncome := marketCap * marginAssumption
	if obs.IssueSize > 0 {
		eps := netIncome / float64(obs.IssueSize)
		if eps != 0 {
			m.PriceEarnings = asset.ValidRatio(lastPrice / eps)
		}
	}

	if obs.IssueSize > 0 && obs.NominalValue != 0 {
		bookValue := float64(obs.IssueSize) * obs.NominalValue
		bookValuePerShare := bookValue / float64(obs.IssueSize)
		m.PriceBook = asset.ValidRatio(lastPrice / bookValuePerShare)
	}

	return m
}
