// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pipeline metrics
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration prometheus.Histogram

	// Data-quality metrics
	RecordsDropped     prometheus.Counter
	PositionsClamped   prometheus.Counter
	PositionsDiscarded prometheus.Counter

	// Enrichment metrics
	VolumeLookupFailures prometheus.Counter

	// Serving metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Live feed metrics
	LiveMintsReceived prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "univ3_liquidity_lab"
	}

	return &Metrics{
		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Wall time of full pipeline runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		RecordsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "records_dropped_total",
			Help:      "Malformed raw records dropped at the normalizer boundary",
		}),
		PositionsClamped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outlier",
			Name:      "positions_clamped_total",
			Help:      "Positions with at least one value clamped to a bound",
		}),
		PositionsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outlier",
			Name:      "positions_discarded_total",
			Help:      "Positions discarded as malformed or degenerate",
		}),
		VolumeLookupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "volume_lookup_failures_total",
			Help:      "Per-band volume lookups that failed or timed out",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Recommendation cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Recommendation cache misses",
		}),
		LiveMintsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "mints_received_total",
			Help:      "Mint records received over the live subscription",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
