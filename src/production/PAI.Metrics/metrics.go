package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const PlantAINamespace = "plantai"

var (
	ReadingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "readings_ingested_total",
			Namespace: PlantAINamespace,
			Help:      "The total number of accepted sensor readings by status color.",
		},
		[]string{"status_color"},
	)

	ValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "validation_failures_total",
			Namespace: PlantAINamespace,
			Help:      "The total number of rejected sensor readings by failure kind.",
		},
		[]string{"kind"},
	)

	PublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "publish_failures_total",
			Namespace: PlantAINamespace,
			Help:      "The total number of advisories that could not be published.",
		},
		[]string{"publisher"},
	)

	ImagesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "images_uploaded_total",
		Namespace: PlantAINamespace,
		Help:      "The total number of plant images accepted by the upload endpoint.",
	})
)
