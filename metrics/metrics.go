// Package metrics exposes Prometheus metrics for the search pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamequest",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"strategy", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gamequest",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gamequest",
			Name:      "retrieval_duration_seconds",
			Help:      "Per-source retrieval duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"source"},
	)

	DegradedSourcesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamequest",
			Name:      "degraded_sources_total",
			Help:      "Retrieval sources that failed or timed out",
		},
		[]string{"source"},
	)

	RerankFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamequest",
			Name:      "rerank_fallbacks_total",
			Help:      "Requests served with the fused order after a rerank failure",
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamequest",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

func init() {
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchDuration,
		RetrievalDuration,
		DegradedSourcesTotal,
		RerankFallbacksTotal,
		EmbeddingCacheTotal,
	)
}
