package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrokerage(baseURL string) *BrokerageProvider {
	return NewBrokerageProvider(BrokerageConfig{
		BaseURL:        baseURL,
		Token:          "test-token",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     0,
		MaxConcurrency: 2,
	})
}

func TestMoneyValue_Float(t *testing.T) {
	assert.InDelta(t, 114.25, moneyValue{Units: 114, Nano: 250_000_000}.Float(), 1e-9)
	assert.InDelta(t, -0.5, moneyValue{Units: 0, Nano: -500_000_000}.Float(), 1e-9)
	assert.Zero(t, moneyValue{}.Float())
}

func TestBrokerageProvider_Shares_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instruments/shares", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"instruments":[
			{"ticker":"SBER","figi":"BBG004730N88","issueSize":21586948000,"nominal":{"units":3,"nano":0}},
			{"ticker":"GAZP","figi":"BBG004730RP0","issueSize":23673512900,"nominal":{"units":5,"nano":0}}
		]}`))
	}))
	defer srv.Close()

	shares, err := testBrokerage(srv.URL).Shares(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 2)

	assert.Equal(t, "SBER", shares[0].Ticker)
	assert.EqualValues(t, 21586948000, shares[0].IssueSize)
	assert.InDelta(t, 3.0, shares[0].Nominal.Float(), 1e-9)
}

func TestBrokerageProvider_DailyCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "day", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"candles":[
			{"time":"2026-08-01T00:00:00Z","open":{"units":100,"nano":0},"high":{"units":105,"nano":0},"low":{"units":99,"nano":0},"close":{"units":104,"nano":500000000},"volume":12345},
			{"time":"2026-08-02T00:00:00Z","open":{"units":104,"nano":500000000},"high":{"units":106,"nano":0},"low":{"units":103,"nano":0},"close":{"units":105,"nano":0},"volume":9876}
		]}`))
	}))
	defer srv.Close()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	candles, err := testBrokerage(srv.URL).DailyCandles(context.Background(), "BBG004730N88", from, to)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.InDelta(t, 104.5, candles[0].Close, 1e-9)
	assert.InDelta(t, 12345, candles[0].Volume, 1e-9)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
}

func TestBrokerageProvider_ServerErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testBrokerage(srv.URL)
	_, err := p.Shares(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER_DEGRADED")
	assert.False(t, p.IsHealthy())
}
