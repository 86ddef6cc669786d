package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/data/cache"
	"github.com/sawpanic/assetrank/internal/infrastructure/httpclient"
	"github.com/sawpanic/assetrank/internal/telemetry"
)

// CoinGeckoProvider supplies the aggregator data the crypto path needs:
// the symbol->id mapping and per-coin transaction volume and circulating
// supply. A missing coin (HTTP 404) yields zero values, not an error.
type CoinGeckoProvider struct {
	baseURL string
	client  *httpclient.ClientPool
	cache   cache.Store
	ttl     time.Duration
	health  *telemetry.ProviderHealth

	mu             sync.RWMutex
	degraded       bool
	degradedReason string
}

type CoinGeckoConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	CacheTTL       time.Duration
}

func NewCoinGeckoProvider(config CoinGeckoConfig, c cache.Store) *CoinGeckoProvider {
	clientConfig := httpclient.ClientConfig{
		MaxConcurrency: 2, // conservative for the free tier
		RequestTimeout: config.RequestTimeout,
		JitterRange:    [2]int{50, 150},
		MaxRetries:     config.MaxRetries,
		BackoffBase:    time.Second,
		BackoffMax:     30 * time.Second,
		UserAgent:      "assetrank/1.0 (Free Tier)",
	}

	if c == nil {
		c = cache.NewMemory()
	}

	return &CoinGeckoProvider{
		baseURL: config.BaseURL,
		client:  httpclient.NewClientPool(clientConfig),
		cache:   c,
		ttl:     config.CacheTTL,
		health:  telemetry.NewProviderHealth("coingecko"),
	}
}

// CoinInfo is one row of the /coins/list mapping.
type CoinInfo struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// CoinData carries the supplementary fields the crypto extractor needs.
type CoinData struct {
	TxVolumeUSD       float64 `json:"transaction_volume_usd"`
	CirculatingSupply float64 `json:"circulating_supply"`
}

// GetCoinsList fetches the full coin catalogue for symbol->id mapping.
func (p *CoinGeckoProvider) GetCoinsList(ctx context.Context) ([]CoinInfo, error) {
	url := fmt.Sprintf("%s/coins/list", p.baseURL)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	resp, err := p.client.Do(ctx, req)
	duration := time.Since(startTime)

	p.health.RecordRequest(err == nil, duration)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("CoinGecko API request failed")
		return nil, p.handleDegradedState("api_error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return nil, p.handleDegradedState("http_error", err)
	}

	var coins []CoinInfo
	if err := json.NewDecoder(resp.Body).Decode(&coins); err != nil {
		return nil, p.handleDegradedState("decode_error", err)
	}

	log.Debug().
		Int("coins_count", len(coins)).
		Dur("duration", duration).
		Msg("CoinGecko coins list retrieved")

	return coins, nil
}

// SymbolMapping builds a lowercase symbol -> coingecko id map. When several
// coins share a symbol the first listing wins.
func (p *CoinGeckoProvider) SymbolMapping(ctx context.Context) (map[string]string, error) {
	coins, err := p.GetCoinsList(ctx)
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(coins))
	for _, coin := range coins {
		symbol := strings.ToLower(coin.Symbol)
		if _, exists := mapping[symbol]; !exists {
			mapping[symbol] = coin.ID
		}
	}
	return mapping, nil
}

// GetCoinData fetches daily transaction volume (USD) and circulating supply
// for one coin id. Unknown ids (empty or 404) return zero values: the
// scoring model treats missing on-chain data as zero volume/supply.
func (p *CoinGeckoProvider) GetCoinData(ctx context.Context, coinID string) (CoinData, error) {
	if coinID == "" {
		return CoinData{}, nil
	}

	cacheKey := "coingecko:coin:" + coinID
	var cached CoinData
	if cache.GetJSON(ctx, p.cache, cacheKey, &cached) {
		return cached, nil
	}

	url := fmt.Sprintf("%s/coins/%s", p.baseURL, coinID)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return CoinData{}, err
	}

	startTime := time.Now()
	resp, err := p.client.Do(ctx, req)
	duration := time.Since(startTime)

	p.health.RecordRequest(err == nil, duration)

	if err != nil {
		return CoinData{}, p.handleDegradedState("api_error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug().Str("coin_id", coinID).Msg("coin not found, using zero volume and supply")
		return CoinData{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return CoinData{}, p.handleDegradedState("http_error", err)
	}

	var detail struct {
		MarketData struct {
			TotalVolume struct {
				USD float64 `json:"usd"`
			} `json:"total_volume"`
			CirculatingSupply float64 `json:"circulating_supply"`
		} `json:"market_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return CoinData{}, p.handleDegradedState("decode_error", err)
	}

	data := CoinData{
		TxVolumeUSD:       detail.MarketData.TotalVolume.USD,
		CirculatingSupply: detail.MarketData.CirculatingSupply,
	}

	cache.SetJSON(ctx, p.cache, cacheKey, data, p.ttl)

	log.Debug().
		Str("coin_id", coinID).
		Dur("duration", duration).
		Msg("CoinGecko coin data retrieved")

	return data, nil
}

func (p *CoinGeckoProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.degraded && p.health.IsHealthy()
}

func (p *CoinGeckoProvider) Health() *telemetry.ProviderHealth {
	return p.health
}

func (p *CoinGeckoProvider) handleDegradedState(reason string, err error) error {
	p.mu.Lock()
	p.degraded = true
	p.degradedReason = reason
	p.mu.Unlock()

	log.Warn().
		Err(err).
		Str("reason", reason).
		Msg("CoinGecko provider degraded")

	p.health.SetDegraded(true, reason)

	return fmt.Errorf("PROVIDER_DEGRADED: %s - %w", reason, err)
}
