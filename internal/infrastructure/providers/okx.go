package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/domain/asset"
	"github.com/sawpanic/assetrank/internal/infrastructure/httpclient"
	"github.com/sawpanic/assetrank/internal/net/breakers"
	"github.com/sawpanic/assetrank/internal/telemetry"
)

// OKXProvider fetches spot tickers and daily candlesticks from OKX's public
// market-data API.
type OKXProvider struct {
	baseURL string
	client  *httpclient.ClientPool
	breaker *breakers.Breaker
	health  *telemetry.ProviderHealth

	mu             sync.RWMutex
	degraded       bool
	degradedReason string
}

type OKXConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	MaxConcurrency int
}

func NewOKXProvider(config OKXConfig) *OKXProvider {
	clientConfig := httpclient.ClientConfig{
		MaxConcurrency: config.MaxConcurrency,
		RequestTimeout: config.RequestTimeout,
		JitterRange:    [2]int{50, 150},
		MaxRetries:     config.MaxRetries,
		BackoffBase:    time.Second,
		BackoffMax:     15 * time.Second,
		UserAgent:      "assetrank/1.0 (Exchange-Native)",
	}

	return &OKXProvider{
		baseURL: config.BaseURL,
		client:  httpclient.NewClientPool(clientConfig),
		breaker: breakers.New("okx"),
		health:  telemetry.NewProviderHealth("okx"),
	}
}

// okxResponse is the common OKX API envelope.
type okxResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// OKXTicker is one instrument's 24h snapshot from /market/tickers.
type OKXTicker struct {
	InstType string `json:"instType"`
	InstID   string `json:"instId"`
	Last     string `json:"last"`
	Open24h  string `json:"open24h"`
	High24h  string `json:"high24h"`
	Low24h   string `json:"low24h"`
	Vol24h   string `json:"vol24h"`
	TS       string `json:"ts"`
}

// LastPrice parses the last traded price; malformed values parse to zero.
func (t OKXTicker) LastPrice() float64 { return parseFloat(t.Last) }

// Volume24h parses the 24h traded volume; malformed values parse to zero.
func (t OKXTicker) Volume24h() float64 { return parseFloat(t.Vol24h) }

// GetTickers returns every ticker of the given instrument type, e.g. "SPOT".
func (p *OKXProvider) GetTickers(ctx context.Context, instType string) ([]OKXTicker, error) {
	url := fmt.Sprintf("%s/api/v5/market/tickers?instType=%s", p.baseURL, instType)

	var tickers []OKXTicker
	if err := p.getJSON(ctx, url, &tickers); err != nil {
		return nil, err
	}

	log.Debug().
		Int("tickers_count", len(tickers)).
		Str("inst_type", instType).
		Msg("OKX tickers retrieved")

	return tickers, nil
}

// GetCandles returns daily candles for one instrument, oldest first. The API
// serves newest-first rows of [ts, o, h, l, c, vol, ...] strings.
func (p *OKXProvider) GetCandles(ctx context.Context, instID, bar string) ([]asset.Candle, error) {
	url := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s", p.baseURL, instID, bar)

	var rows [][]string
	if err := p.getJSON(ctx, url, &rows); err != nil {
		return nil, err
	}

	candles := make([]asset.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(row[0], 10, 64)
		candles = append(candles, asset.Candle{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      parseFloat(row[1]),
			High:      parseFloat(row[2]),
			Low:       parseFloat(row[3]),
			Close:     parseFloat(row[4]),
			Volume:    parseFloat(row[5]),
		})
	}

	log.Debug().
		Str("inst_id", instID).
		Int("candles_count", len(candles)).
		Msg("OKX candles retrieved")

	return candles, nil
}

func (p *OKXProvider) getJSON(ctx context.Context, url string, out any) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.fetch(ctx, url, out)
	})
	return err
}

func (p *OKXProvider) fetch(ctx context.Context, url string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	startTime := time.Now()
	resp, err := p.client.Do(ctx, req)
	duration := time.Since(startTime)

	p.health.RecordRequest(err == nil, duration)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("OKX API request failed")
		return p.handleDegradedState("api_error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.logRateLimit(resp)
		return p.handleDegradedState("rate_limited", fmt.Errorf("rate limited by OKX"))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return p.handleDegradedState("http_error", err)
	}

	var envelope okxResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return p.handleDegradedState("decode_error", err)
	}

	if envelope.Code != "0" {
		err := fmt.Errorf("OKX API error: %s - %s", envelope.Code, envelope.Msg)
		return p.handleDegradedState("api_error", err)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return p.handleDegradedState("decode_error", err)
	}
	return nil
}

func (p *OKXProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.degraded && p.health.IsHealthy()
}

func (p *OKXProvider) Health() *telemetry.ProviderHealth {
	return p.health
}

func (p *OKXProvider) logRateLimit(resp *http.Response) {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		retryAfter = "unknown"
	}
	log.Warn().
		Str("retry_after", retryAfter).
		Msg("OKX rate limit hit")
}

func (p *OKXProvider) handleDegradedState(reason string, err error) error {
	p.mu.Lock()
	p.degraded = true
	p.degradedReason = reason
	p.mu.Unlock()

	log.Warn().
		Err(err).
		Str("reason", reason).
		Msg("OKX provider degraded")

	p.health.SetDegraded(true, reason)

	return fmt.Errorf("PROVIDER_DEGRADED: %s - %w", reason, err)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
