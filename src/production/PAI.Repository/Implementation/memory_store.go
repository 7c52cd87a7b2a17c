package implementation

import (
	"context"
	"sync"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const memoryBackend = "memory"

var _ interfaces.ReadingStore = (*MemoryReadingStore)(nil)

// logCapacity clamps a reading log capacity to at least one entry
func logCapacity(capacity int) int {
	if capacity < 1 {
		return 1
	}
	return capacity
}

// MemoryReadingStore keeps the reading log in process memory
type MemoryReadingStore struct {
	mu       sync.Mutex
	readings []models.SensorReading
	capacity int
}

func NewMemoryReadingStore(capacity int) *MemoryReadingStore {
	capacity = logCapacity(capacity)
	return &MemoryReadingStore{
		readings: make([]models.SensorReading, 0, capacity),
		capacity: capacity,
	}
}

func (s *MemoryReadingStore) Append(ctx context.Context, reading models.SensorReading) error {
	if err := ctx.Err(); err != nil {
		return interfaces.NewStorageError(memoryBackend, "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.readings) >= s.capacity {
		copy(s.readings, s.readings[1:])
		s.readings[len(s.readings)-1] = reading
		return nil
	}
	s.readings = append(s.readings, reading)
	return nil
}

func (s *MemoryReadingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, interfaces.NewStorageError(memoryBackend, "latest", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.readings) == 0 {
		return nil, interfaces.ErrNotFound
	}
	latest := s.readings[len(s.readings)-1]
	return &latest, nil
}

// Len returns the number of retained readings
func (s *MemoryReadingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

// Snapshot returns a copy of the log, oldest first
func (s *MemoryReadingStore) Snapshot() []models.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SensorReading, len(s.readings))
	copy(out, s.readings)
	return out
}

func (s *MemoryReadingStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryReadingStore) Close(ctx context.Context) error { return nil }
