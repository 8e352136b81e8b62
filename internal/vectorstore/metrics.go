// Package vectorstore provides Prometheus metrics for the Qdrant adapter.
package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpsertDuration tracks how long point upserts take.
	UpsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "codeindexd",
			Subsystem: "vectorstore",
			Name:      "upsert_duration_seconds",
			Help:      "Duration of point upsert operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// UpsertPointsTotal counts points written, by outcome.
	// Labels: result (success, error)
	UpsertPointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeindexd",
			Subsystem: "vectorstore",
			Name:      "upsert_points_total",
			Help:      "Total number of points upserted",
		},
		[]string{"result"},
	)

	// SearchDuration tracks search latency by search kind.
	// Labels: kind (dense, hybrid)
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codeindexd",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of similarity search operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// SearchTotal counts search operations, by kind and outcome.
	SearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeindexd",
			Subsystem: "vectorstore",
			Name:      "search_total",
			Help:      "Total number of similarity search operations",
		},
		[]string{"kind", "result"},
	)

	// CircuitBreakerOpen indicates whether the Qdrant circuit breaker is
	// currently tripped (1=open, 0=closed).
	CircuitBreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "codeindexd",
			Subsystem: "vectorstore",
			Name:      "circuit_breaker_open",
			Help:      "Whether the Qdrant circuit breaker is currently open",
		},
	)

	// CollectionPointCount tracks point counts per collection, refreshed
	// whenever GetCollectionInfo is called.
	CollectionPointCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "codeindexd",
			Subsystem: "vectorstore",
			Name:      "collection_point_count",
			Help:      "Point count of a collection as of the last GetCollectionInfo call",
		},
		[]string{"collection"},
	)
)

// RecordUpsert records the outcome and duration of an UpsertPoints call.
func RecordUpsert(success bool, pointCount int, duration time.Duration) {
	UpsertDuration.Observe(duration.Seconds())
	result := "success"
	if !success {
		result = "error"
	}
	UpsertPointsTotal.WithLabelValues(result).Add(float64(pointCount))
}

// RecordSearch records the outcome and duration of a search call.
func RecordSearch(kind string, success bool, duration time.Duration) {
	SearchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	result := "success"
	if !success {
		result = "error"
	}
	SearchTotal.WithLabelValues(kind, result).Inc()
}
