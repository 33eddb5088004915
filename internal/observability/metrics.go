package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for extraction runs and the
// explorer API. Each instance owns its registry. All methods are safe on a
// nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// Extractions by kind and outcome status
	Extractions *prometheus.CounterVec

	// Declarations parsed by kind
	Declarations *prometheus.CounterVec

	// Recognized calls skipped for too few arguments, by kind
	SkippedCalls *prometheus.CounterVec

	// Source fetch latency by kind
	FetchLatency *prometheus.HistogramVec

	// Parsed-block cache lookups by result (hit, miss)
	CacheLookups *prometheus.CounterVec

	// Settings per registry after the last run
	RegistrySize *prometheus.GaugeVec

	// Explorer API requests by route and status code
	Requests *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_extractions_total",
			Help: "Per-revision extractions by source kind and outcome",
		}, []string{"kind", "status"}),
		Declarations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_declarations_total",
			Help: "Declarations parsed by source kind",
		}, []string{"kind"}),
		SkippedCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_skipped_calls_total",
			Help: "Declaration calls skipped for too few arguments",
		}, []string{"kind"}),
		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lineage_fetch_duration_seconds",
			Help:    "Duration of source fetches from version control",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_block_cache_lookups_total",
			Help: "Parsed block cache lookups by result",
		}, []string{"result"}),
		RegistrySize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lineage_registry_settings",
			Help: "Distinct settings per registry",
		}, []string{"kind"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_api_requests_total",
			Help: "Explorer API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveExtraction records one extraction outcome.
func (m *Metrics) ObserveExtraction(kind, status string, declarations, skipped int, fetch time.Duration) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(kind, status).Inc()
	m.Declarations.WithLabelValues(kind).Add(float64(declarations))
	m.SkippedCalls.WithLabelValues(kind).Add(float64(skipped))
	if fetch > 0 {
		m.FetchLatency.WithLabelValues(kind).Observe(fetch.Seconds())
	}
}

// ObserveCacheLookup records a parsed-block cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SetRegistrySize records the number of settings in a registry.
func (m *Metrics) SetRegistrySize(kind string, n int) {
	if m == nil {
		return
	}
	m.RegistrySize.WithLabelValues(kind).Set(float64(n))
}

// ObserveRequest records an API request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics to path for the node exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
