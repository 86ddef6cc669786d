package telemetry

import (
	"sync"
	"time"
)

// ProviderHealth tracks request outcomes and degraded state for one
// upstream provider. Safe for concurrent use.
type ProviderHealth struct {
	name string

	mu             sync.RWMutex
	totalRequests  int64
	failedRequests int64
	avgLatencyMS   float64
	lastRequestAt  time.Time
	degraded       bool
	degradedReason string
}

func NewProviderHealth(name string) *ProviderHealth {
	return &ProviderHealth{name: name}
}

// RecordRequest records one request outcome and feeds the prometheus
// provider counter.
func (h *ProviderHealth) RecordRequest(ok bool, duration time.Duration) {
	result := "success"
	if !ok {
		result = "error"
	}
	ProviderRequests.WithLabelValues(h.name, result).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	if !ok {
		h.failedRequests++
	}
	h.lastRequestAt = time.Now()

	latencyMS := float64(duration.Milliseconds())
	if h.avgLatencyMS == 0 {
		h.avgLatencyMS = latencyMS
	} else {
		// Exponential moving average, alpha 0.1.
		h.avgLatencyMS = 0.9*h.avgLatencyMS + 0.1*latencyMS
	}
}

// SetDegraded marks or clears the provider's degraded state.
func (h *ProviderHealth) SetDegraded(degraded bool, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = degraded
	h.degradedReason = reason
}

// IsHealthy reports whether the provider is not degraded and its error rate
// stays under 10%.
func (h *ProviderHealth) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.degraded {
		return false
	}
	if h.totalRequests == 0 {
		return true
	}
	return float64(h.failedRequests)/float64(h.totalRequests) < 0.1
}

// HealthSnapshot is the JSON shape served by the monitor's health endpoint.
type HealthSnapshot struct {
	Provider       string    `json:"provider"`
	Healthy        bool      `json:"healthy"`
	TotalRequests  int64     `json:"total_requests"`
	FailedRequests int64     `json:"failed_requests"`
	AvgLatencyMS   float64   `json:"avg_latency_ms"`
	LastRequestAt  time.Time `json:"last_request_at,omitempty"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
}

// Snapshot returns a point-in-time copy of the health state.
func (h *ProviderHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HealthSnapshot{
		Provider:       h.name,
		Healthy:        !h.degraded && (h.totalRequests == 0 || float64(h.failedRequests)/float64(h.totalRequests) < 0.1),
		TotalRequests:  h.totalRequests,
		FailedRequests: h.failedRequests,
		AvgLatencyMS:   h.avgLatencyMS,
		LastRequestAt:  h.lastRequestAt,
		Degraded:       h.degraded,
		DegradedReason: h.degradedReason,
	}
}
