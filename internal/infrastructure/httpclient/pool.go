package httpclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ClientConfig tunes the pooled HTTP client.
type ClientConfig struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	JitterRange    [2]int // min/max pre-request jitter in milliseconds
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// ClientPool is a shared HTTP client with a concurrency cap, pre-request
// jitter, and bounded retry with exponential backoff. Rate-limit responses
// carrying a Retry-After hint override the computed backoff for the next
// attempt; retries are always bounded, never recursive.
type ClientPool struct {
	config    ClientConfig
	semaphore chan struct{}
	client    *http.Client

	mu    sync.Mutex
	stats ClientStats
}

// ClientStats counts request outcomes across the pool's lifetime.
type ClientStats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	RetriedRequests int64
}

func NewClientPool(config ClientConfig) *ClientPool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return &ClientPool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

// Do executes the request with retries on transient failures. The caller
// owns the response body on success.
func (cp *ClientPool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case cp.semaphore <- struct{}{}:
		defer func() { <-cp.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if cp.config.UserAgent != "" {
		req.Header.Set("User-Agent", cp.config.UserAgent)
	}

	if err := cp.applyJitter(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	var hint time.Duration
	for attempt := 0; attempt <= cp.config.MaxRetries; attempt++ {
		if attempt > 0 {
			cp.count(func(s *ClientStats) { s.RetriedRequests++ })

			backoff := cp.calculateBackoff(attempt)
			if hint > 0 {
				backoff = hint
				hint = 0
			}
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL.String()).
				Msg("retrying HTTP request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := cp.client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if isRetryableError(err) {
				continue
			}
			break
		}

		if isRetryableStatus(resp.StatusCode) && attempt < cp.config.MaxRetries {
			hint = retryAfterHint(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			continue
		}

		cp.count(func(s *ClientStats) { s.TotalRequests++; s.SuccessRequests++ })
		return resp, nil
	}

	cp.count(func(s *ClientStats) { s.TotalRequests++; s.FailedRequests++ })
	return nil, lastErr
}

// Stats returns a copy of the pool's counters.
func (cp *ClientPool) Stats() ClientStats {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.stats
}

func (cp *ClientPool) count(fn func(*ClientStats)) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	fn(&cp.stats)
}

func (cp *ClientPool) applyJitter(ctx context.Context) error {
	lo, hi := cp.config.JitterRange[0], cp.config.JitterRange[1]
	if lo >= hi {
		return nil
	}
	jitter := time.Duration(rand.Intn(hi-lo)+lo) * time.Millisecond

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cp *ClientPool) calculateBackoff(attempt int) time.Duration {
	backoff := cp.config.BackoffBase * time.Duration(1<<uint(attempt))
	if backoff > cp.config.BackoffMax {
		backoff = cp.config.BackoffMax
	}
	// up to 10% jitter on top
	return backoff + time.Duration(rand.Float64()*0.1*float64(backoff))
}

// retryAfterHint parses a Retry-After header in delay-seconds form. Absent
// or unparseable headers fall back to the computed backoff.
func retryAfterHint(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, candidate := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"network is unreachable",
		"no such host",
	} {
		if strings.Contains(msg, candidate) {
			return true
		}
	}
	return false
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
