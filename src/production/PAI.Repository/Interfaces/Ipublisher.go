package interfaces

import (
	"context"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// AdvisoryPublisher fans accepted readouts out to downstream consumers
type AdvisoryPublisher interface {
	Publish(ctx context.Context, readout models.Readout) error
	Ping(ctx context.Context) error
	Close() error
}
