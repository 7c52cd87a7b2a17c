package messaging

import (
	"context"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

var _ interfaces.AdvisoryPublisher = NoopPublisher{}

// NoopPublisher drops every readout
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.Readout) error { return nil }
func (NoopPublisher) Ping(context.Context) error                    { return nil }
func (NoopPublisher) Close() error                                  { return nil }
