package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/domain/asset"
	"github.com/sawpanic/assetrank/internal/infrastructure/httpclient"
	"github.com/sawpanic/assetrank/internal/net/breakers"
	"github.com/sawpanic/assetrank/internal/telemetry"
)

// BrokerageProvider fetches the equity universe and its candle history from
// the brokerage REST API. Requests carry a bearer token.
type BrokerageProvider struct {
	baseURL string
	token   string
	client  *httpclient.ClientPool
	breaker *breakers.Breaker
	health  *telemetry.ProviderHealth

	mu             sync.RWMutex
	degraded       bool
	degradedReason string
}

type BrokerageConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	MaxRetries     int
	MaxConcurrency int
}

func NewBrokerageProvider(config BrokerageConfig) *BrokerageProvider {
	clientConfig := httpclient.ClientConfig{
		MaxConcurrency: config.MaxConcurrency,
		RequestTimeout: config.RequestTimeout,
		JitterRange:    [2]int{50, 150},
		MaxRetries:     config.MaxRetries,
		BackoffBase:    time.Second,
		BackoffMax:     15 * time.Second,
		UserAgent:      "assetrank/1.0",
	}

	return &BrokerageProvider{
		baseURL: config.BaseURL,
		token:   config.Token,
		client:  httpclient.NewClientPool(clientConfig),
		breaker: breakers.New("brokerage"),
		health:  telemetry.NewProviderHealth("brokerage"),
	}
}

// moneyValue is the brokerage's fixed-point money representation:
// integer units plus nanos.
type moneyValue struct {
	Units int64 `json:"units"`
	Nano  int32 `json:"nano"`
}

func (m moneyValue) Float() float64 {
	return float64(m.Units) + float64(m.Nano)/1e9
}

// Share is one listed equity instrument.
type Share struct {
	Ticker    string     `json:"ticker"`
	FIGI      string     `json:"figi"`
	IssueSize int64      `json:"issueSize"`
	Nominal   moneyValue `json:"nominal"`
}

type sharesResponse struct {
	Instruments []Share `json:"instruments"`
}

type brokerageCandle struct {
	Time   time.Time  `json:"time"`
	Open   moneyValue `json:"open"`
	High   moneyValue `json:"high"`
	Low    moneyValue `json:"low"`
	Close  moneyValue `json:"close"`
	Volume int64      `json:"volume"`
}

type candlesResponse struct {
	Candles []brokerageCandle `json:"candles"`
}

// Shares lists every tradable share instrument.
func (p *BrokerageProvider) Shares(ctx context.Context) ([]Share, error) {
	url := fmt.Sprintf("%s/instruments/shares", p.baseURL)

	var out sharesResponse
	if err := p.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}

	log.Debug().
		Int("shares_count", len(out.Instruments)).
		Msg("brokerage shares retrieved")

	return out.Instruments, nil
}

// DailyCandles fetches daily candles for one instrument over [from, to],
// chronological. An instrument with no history returns an empty slice.
func (p *BrokerageProvider) DailyCandles(ctx context.Context, figi string, from, to time.Time) ([]asset.Candle, error) {
	url := fmt.Sprintf("%s/instruments/%s/candles?from=%s&to=%s&interval=day",
		p.baseURL, figi, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))

	var out candlesResponse
	if err := p.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}

	candles := make([]asset.Candle, 0, len(out.Candles))
	for _, c := range out.Candles {
		candles = append(candles, asset.Candle{
			Timestamp: c.Time.UTC(),
			Open:      c.Open.Float(),
			High:      c.High.Float(),
			Low:       c.Low.Float(),
			Close:     c.Close.Float(),
			Volume:    float64(c.Volume),
		})
	}

	return candles, nil
}

func (p *BrokerageProvider) getJSON(ctx context.Context, url string, out any) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.fetch(ctx, url, out)
	})
	return err
}

func (p *BrokerageProvider) fetch(ctx context.Context, url string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	startTime := time.Now()
	resp, err := p.client.Do(ctx, req)
	duration := time.Since(startTime)

	p.health.RecordRequest(err == nil, duration)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("brokerage API request failed")
		return p.handleDegradedState("api_error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Warn().
			Str("retry_after", resp.Header.Get("Retry-After")).
			Msg("brokerage rate limit hit")
		return p.handleDegradedState("rate_limited", fmt.Errorf("rate limited by brokerage"))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return p.handleDegradedState("http_error", err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return p.handleDegradedState("decode_error", err)
	}
	return nil
}

func (p *BrokerageProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.degraded && p.health.IsHealthy()
}

func (p *BrokerageProvider) Health() *telemetry.ProviderHealth {
	return p.health
}

func (p *BrokerageProvider) handleDegradedState(reason string, err error) error {
	p.mu.Lock()
	p.degraded = true
	p.degradedReason = reason
	p.mu.Unlock()

	log.Warn().
		Err(err).
		Str("reason", reason).
		Msg("brokerage provider degraded")

	p.health.SetDegraded(true, reason)

	return fmt.Errorf("PROVIDER_DEGRADED: %s - %w", reason, err)
}
