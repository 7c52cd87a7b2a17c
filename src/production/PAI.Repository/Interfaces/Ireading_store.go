package interfaces

import (
	"context"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// ReadingStore is the bounded, append-only reading log
type ReadingStore interface {
	// Append adds a reading at the end, evicting the oldest entries beyond the cap.
	// The reading is visible to Latest only once Append returns nil.
	Append(ctx context.Context, reading models.SensorReading) error

	// Latest returns the most recently appended reading or ErrNotFound
	Latest(ctx context.Context) (*models.SensorReading, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// LatestCache holds a copy of the most recent reading in front of a ReadingStore
type LatestCache interface {
	Get(ctx context.Context) (*models.SensorReading, error)
	Set(ctx context.Context, reading models.SensorReading) error
	// Fill stores reading only when the cache holds no entry; a newer entry is never replaced
	Fill(ctx context.Context, reading models.SensorReading) error
	Invalidate(ctx context.Context) error
	Ping(ctx context.Context) error
}
