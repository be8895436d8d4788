package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Backing store and vector index metrics.
var (
	StoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Backing store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection", "op"},
	)

	StoreOpErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operation_errors_total",
			Help:      "Total failed backing store operations",
		},
		[]string{"collection", "op"},
	)

	VectorIndexStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vector_index_status",
			Help:      "Last observed vector index status (1 for the current status, 0 otherwise)",
		},
		[]string{"index", "status"},
	)

	VectorIndexPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_index_polls_total",
			Help:      "Vector index status polls issued while waiting for a transition",
		},
		[]string{"index", "phase"},
	)
)

var registerStore sync.Once

// RegisterStoreMetrics registers the MongoDB and vector index series. Repeated calls are no-ops.
func RegisterStoreMetrics() {
	registerStore.Do(func() {
		prometheus.MustRegister(StoreOpDuration, StoreOpErrorsTotal, VectorIndexStatus, VectorIndexPollsTotal)
	})
}
