package implementation

import (
	"context"
	"errors"
	"time"

	metrics "gitlab.com/plantai/plantai.server/src/production/PAI.Metrics"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

var _ interfaces.ReadingStore = (*InstrumentedReadingStore)(nil)

// InstrumentedReadingStore records latency and failures of every store call
type InstrumentedReadingStore struct {
	store  interfaces.ReadingStore
	driver string
}

func NewInstrumentedReadingStore(store interfaces.ReadingStore, driver string) *InstrumentedReadingStore {
	return &InstrumentedReadingStore{store: store, driver: driver}
}

func (s *InstrumentedReadingStore) Append(ctx context.Context, reading models.SensorReading) error {
	start := time.Now()
	err := s.store.Append(ctx, reading)
	s.observe("append", start, err)
	return err
}

func (s *InstrumentedReadingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	start := time.Now()
	reading, err := s.store.Latest(ctx)
	s.observe("latest", start, err)
	return reading, err
}

func (s *InstrumentedReadingStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *InstrumentedReadingStore) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

func (s *InstrumentedReadingStore) observe(op string, start time.Time, err error) {
	metrics.StoreOperationLatencySeconds.WithLabelValues(s.driver, op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		metrics.StoreErrorsTotal.WithLabelValues(s.driver, op).Inc()
	}
}
