package providers

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/domain/asset"
	"github.com/sawpanic/assetrank/internal/net/ratelimit"
	"github.com/sawpanic/assetrank/internal/telemetry"
)

// Source assembles complete AssetObservations from the three upstream
// providers. The scoring core only ever sees the assembled observations;
// network failures, retries and rate limits stop here.
type Source struct {
	brokerage *BrokerageProvider
	okx       *OKXProvider
	coingecko *CoinGeckoProvider
	limiter   *ratelimit.Limiter

	// Caps on how much of each universe one scan ingests; zero means all.
	MaxEquities int
	MaxCryptos  int

	// HistoryDays bounds the equity candle window. Defaults to a year.
	HistoryDays int
}

func NewSource(brokerage *BrokerageProvider, okx *OKXProvider, coingecko *CoinGeckoProvider, limiter *ratelimit.Limiter) *Source {
	return &Source{
		brokerage:   brokerage,
		okx:         okx,
		coingecko:   coingecko,
		limiter:     limiter,
		HistoryDays: 365,
	}
}

// Equities fetches the share universe with one year of daily candles each.
// Instruments whose candle fetch fails are skipped with a warning rather
// than failing the batch.
func (s *Source) Equities(ctx context.Context) ([]asset.EquityObservation, error) {
	if s.brokerage == nil {
		return nil, nil
	}

	shares, err := s.brokerage.Shares(ctx)
	if err != nil {
		return nil, err
	}
	if s.MaxEquities > 0 && len(shares) > s.MaxEquities {
		shares = shares[:s.MaxEquities]
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -s.HistoryDays)

	observations := make([]asset.EquityObservation, 0, len(shares))
	for _, share := range shares {
		if err := s.limiter.Wait(ctx, "brokerage"); err != nil {
			return nil, err
		}

		candles, err := s.brokerage.DailyCandles(ctx, share.FIGI, from, to)
		if err != nil {
			telemetry.PipelineErrors.WithLabelValues("ingest_equity").Inc()
			log.Warn().Err(err).Str("ticker", share.Ticker).Msg("skipping share, candle fetch failed")
			continue
		}

		observations = append(observations, asset.EquityObservation{
			Ticker:       share.Ticker,
			IssueSize:    share.IssueSize,
			NominalValue: share.Nominal.Float(),
			Candles:      candles,
		})
	}

	log.Info().Int("equities", len(observations)).Msg("equity universe ingested")
	return observations, nil
}

// Cryptos fetches the SPOT ticker universe with daily candles and
// aggregator-supplied supply/volume data. A symbol with no aggregator
// listing keeps zero values per the 404 contract.
func (s *Source) Cryptos(ctx context.Context) ([]asset.CryptoObservation, error) {
	if s.okx == nil {
		return nil, nil
	}

	tickers, err := s.okx.GetTickers(ctx, "SPOT")
	if err != nil {
		return nil, err
	}
	if s.MaxCryptos > 0 && len(tickers) > s.MaxCryptos {
		tickers = tickers[:s.MaxCryptos]
	}

	var mapping map[string]string
	if s.coingecko != nil {
		mapping, err = s.coingecko.SymbolMapping(ctx)
		if err != nil {
			return nil, err
		}
	}

	observations := make([]asset.CryptoObservation, 0, len(tickers))
	for _, ticker := range tickers {
		if err := s.limiter.Wait(ctx, "okx"); err != nil {
			return nil, err
		}

		candles, err := s.okx.GetCandles(ctx, ticker.InstID, "1D")
		if err != nil {
			telemetry.PipelineErrors.WithLabelValues("ingest_crypto").Inc()
			log.Warn().Err(err).Str("inst_id", ticker.InstID).Msg("skipping instrument, candle fetch failed")
			continue
		}

		var coinData CoinData
		if s.coingecko != nil {
			coinID := mapping[baseSymbol(ticker.InstID)]
			if err := s.limiter.Wait(ctx, "coingecko"); err != nil {
				return nil, err
			}
			coinData, err = s.coingecko.GetCoinData(ctx, coinID)
			if err != nil {
				telemetry.PipelineErrors.WithLabelValues("ingest_crypto").Inc()
				log.Warn().Err(err).Str("inst_id", ticker.InstID).Msg("aggregator data unavailable, using zeros")
				coinData = CoinData{}
			}
		}

		observations = append(observations, asset.CryptoObservation{
			InstID:            ticker.InstID,
			Vol24h:            ticker.Volume24h(),
			LastPrice:         ticker.LastPrice(),
			Candles:           candles,
			TxVolumeUSD:       coinData.TxVolumeUSD,
			CirculatingSupply: coinData.CirculatingSupply,
		})
	}

	log.Info().Int("cryptos", len(observations)).Msg("crypto universe ingested")
	return observations, nil
}

// Health returns the health snapshots of all configured providers.
func (s *Source) Health() []telemetry.HealthSnapshot {
	var out []telemetry.HealthSnapshot
	if s.brokerage != nil {
		out = append(out, s.brokerage.Health().Snapshot())
	}
	if s.okx != nil {
		out = append(out, s.okx.Health().Snapshot())
	}
	if s.coingecko != nil {
		out = append(out, s.coingecko.Health().Snapshot())
	}
	return out
}

// baseSymbol extracts the lowercase base currency from an instrument id,
// e.g. "BTC-USDT" -> "btc".
func baseSymbol(instID string) string {
	base, _, _ := strings.Cut(instID, "-")
	return strings.ToLower(base)
}
