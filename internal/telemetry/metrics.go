package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Prometheus metrics for the scan/allocate pipeline and the provider layer.
// Registered on the default registry and served by the monitor's /metrics.
var (
	AssetsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetrank_assets_scanned_total",
			Help: "Assets extracted and scored, by asset class",
		},
		[]string{"class"},
	)

	BatchesBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetrank_batches_built_total",
			Help: "Metric batches produced, by source (cache or fresh)",
		},
		[]string{"source"},
	)

	PipelineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetrank_pipeline_errors_total",
			Help: "Pipeline errors by stage",
		},
		[]string{"stage"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetrank_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetrank_provider_requests_total",
			Help: "Provider API requests by provider and result",
		},
		[]string{"provider", "result"},
	)

	PortfoliosAllocated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetrank_portfolios_allocated_total",
			Help: "Portfolios produced by the allocator",
		},
	)

	LivePrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assetrank_live_price",
			Help: "Last traded price from the live ticker stream",
		},
		[]string{"inst_id"},
	)
)

// GatherValue reads the current value of a counter or gauge family from the
// default registry, summed across label combinations. Used by the monitor's
// health endpoint and by tests.
func GatherValue(name string) (float64, bool) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return 0, false
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += metricValue(m)
		}
		return total, true
	}
	return 0, false
}

func metricValue(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	if g := m.GetGauge(); g != nil {
		return g.GetValue()
	}
	return 0
}
