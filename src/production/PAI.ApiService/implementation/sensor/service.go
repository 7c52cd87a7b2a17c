package sensor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	metrics "gitlab.com/plantai/plantai.server/src/production/PAI.Metrics"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const tracerName = "plantai-sensor"

// Service runs the advisory pipeline: validate, advise, classify, persist
type Service struct {
	store     interfaces.ReadingStore
	publisher interfaces.AdvisoryPublisher
	logger    *logger.Logger
	source    string

	now   func() time.Time
	newID func() string
}

// NewService creates the pipeline. publisher may be nil.
func NewService(store interfaces.ReadingStore, publisher interfaces.AdvisoryPublisher, log *logger.Logger, source string) *Service {
	if source == "" {
		source = models.DefaultSource
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("sensor_service"),
		source:    source,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Ingest validates a raw reading, appends it to the log and returns its readout.
// Nothing is persisted when validation fails.
func (s *Service) Ingest(ctx context.Context, input map[string]any) (models.Readout, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sensor.Ingest")
	defer span.End()

	measurements, err := Validate(input)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			metrics.ValidationFailuresTotal.WithLabelValues(string(verr.Kind)).Inc()
			span.SetAttributes(attribute.String("validation.kind", string(verr.Kind)))
		}
		span.SetStatus(codes.Error, err.Error())
		return models.Readout{}, err
	}

	reading := models.SensorReading{
		ID:           s.newID(),
		Timestamp:    s.now().UTC().Truncate(time.Millisecond),
		Source:       s.source,
		Measurements: measurements,
	}
	readout := toReadout(reading, false)

	span.SetAttributes(
		attribute.String("reading.id", reading.ID),
		attribute.String("reading.status_color", string(readout.StatusColor)),
		attribute.Int("reading.severity_score", readout.SeverityScore),
	)

	if err := s.store.Append(ctx, reading); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Str("reading_id", reading.ID).Msg("Failed to append sensor reading")
		return models.Readout{}, err
	}
	metrics.ReadingsIngestedTotal.WithLabelValues(string(readout.StatusColor)).Inc()

	s.publish(ctx, readout)

	s.logger.Debug().
		Str("reading_id", reading.ID).
		Str("status_color", string(readout.StatusColor)).
		Int("severity_score", readout.SeverityScore).
		Msg("Sensor reading ingested")

	span.SetStatus(codes.Ok, "")
	return readout, nil
}

// Latest returns the readout of the most recent reading, or interfaces.ErrNotFound
func (s *Service) Latest(ctx context.Context) (models.Readout, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sensor.Latest")
	defer span.End()

	reading, err := s.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			span.SetAttributes(attribute.Bool("reading.found", false))
			span.SetStatus(codes.Ok, "")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return models.Readout{}, err
	}

	span.SetAttributes(
		attribute.Bool("reading.found", true),
		attribute.String("reading.id", reading.ID),
	)
	span.SetStatus(codes.Ok, "")
	return toReadout(*reading, true), nil
}

// publish is best effort; the reading is already durable
func (s *Service) publish(ctx context.Context, readout models.Readout) {
	if s.publisher == nil {
		return
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "advisory.Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	if err := s.publisher.Publish(ctx, readout); err != nil {
		span.RecordError(err)
		metrics.PublishFailuresTotal.WithLabelValues("advisory").Inc()
		s.logger.Warn().Err(err).Str("reading_id", readout.SensorDataID).Msg("Failed to publish advisory")
	}
}

func toReadout(reading models.SensorReading, withReadings bool) models.Readout {
	score, color := Classify(reading.Measurements)
	readout := models.Readout{
		SensorDataID:  reading.ID,
		Timestamp:     reading.Timestamp,
		AIReply:       Advise(reading.Measurements),
		StatusColor:   color,
		SeverityScore: score,
	}
	if withReadings {
		m := reading.Measurements
		readout.SensorReadings = &m
		readout.Source = reading.Source
	}
	return readout
}
