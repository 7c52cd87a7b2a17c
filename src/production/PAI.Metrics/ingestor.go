package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestorMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "ingestor_messages_total",
			Namespace: PlantAINamespace,
			Help:      "MQTT sensor messages handled by the ingestor, by outcome.",
		},
		[]string{"outcome"},
	)

	IngestorBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "ingestor_batch_size",
		Namespace: PlantAINamespace,
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		Help:      "The number of messages flushed per batch.",
	})
)
