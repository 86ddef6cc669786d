package metrics

import "github.com/sawpanic/assetrank/internal/domain/asset"

// Crypto derives the raw crypto metrics bundle from one observation.
// Pure function, safe to call concurrently per asset.
func Crypto(obs asset.CryptoObservation) asset.Metrics {
	m := asset.Metrics{
		ID:        obs.InstID,
		Class:     asset.ClassCrypto,
		Liquidity: obs.Vol24h, // 24h traded volume is given directly
	}

	prices := closes(obs.Candles)
	changes := pctChanges(prices)

	m.ReturnPct = returnPct(prices)
	m.VolatilityPct = stddev(changes) * 100
	m.MaxVolatilityPct = maxAbs(changes) * 100

	if obs.Vol24h > 0 {
		m.PriceToVolume = asset.ValidRatio(obs.LastPrice / obs.Vol24h)
	}

	marketCap := obs.LastPrice * obs.CirculatingSupply
	if obs.TxVolumeUSD > 0 {
		m.NetworkValueToTransactions = asset.ValidRatio(marketCap / obs.TxVolumeUSD)
	}

	return m
}
