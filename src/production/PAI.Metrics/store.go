package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreOperationLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "store_operation_latency_seconds",
			Namespace: PlantAINamespace,
			Buckets:   prometheus.DefBuckets,
			Help:      "The latency of reading store operations in seconds.",
		},
		[]string{"driver", "op"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "store_errors_total",
			Namespace: PlantAINamespace,
			Help:      "The total number of failed reading store operations.",
		},
		[]string{"driver", "op"},
	)
)
