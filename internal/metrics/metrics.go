package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "miaou"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"method", "path"})

	SearcherResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searcher_results_total",
		Help:      "Torrents returned by each searcher, by category.",
	}, []string{"searcher", "category"})

	SearcherFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searcher_failures_total",
		Help:      "Searcher calls that failed and were absorbed into empty results.",
	}, []string{"searcher"})

	DebridCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "debrid_calls_total",
		Help:      "AllDebrid calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Cache hits by category.",
	}, []string{"category"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Cache misses by category.",
	}, []string{"category"})

	StreamsServed = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "streams_per_request",
		Help:      "Number of streams returned per stream request.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SearcherResultsTotal,
		SearcherFailuresTotal,
		DebridCallsTotal,
		BreakerState,
		CacheHitsTotal,
		CacheMissesTotal,
		StreamsServed,
	)
}
