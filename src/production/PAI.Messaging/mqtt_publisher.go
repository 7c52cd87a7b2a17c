package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const publishTimeout = 5 * time.Second

var _ interfaces.AdvisoryPublisher = (*MQTTPublisher)(nil)

// MQTTPublisher publishes every readout as a retained message,
// so a device subscribing late still gets the current advisory
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// ConnectMQTTPublisher connects to the broker and returns a publisher on topic
func ConnectMQTTPublisher(cfg config.MQTTConfig, topic string) (*MQTTPublisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.SetClientID(cfg.ClientID + "-publisher")

	client := mqtt.NewClient(opts)
	if tk := client.Connect(); !tk.WaitTimeout(30*time.Second) || tk.Error() != nil {
		if tk.Error() != nil {
			return nil, fmt.Errorf("mqtt connect: %w", tk.Error())
		}
		return nil, fmt.Errorf("mqtt connect: timed out")
	}
	return NewMQTTPublisher(client, topic), nil
}

func NewMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic}
}

func (p *MQTTPublisher) Publish(ctx context.Context, readout models.Readout) error {
	payload, err := json.Marshal(readout)
	if err != nil {
		return fmt.Errorf("failed to marshal readout: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish to %s: %w", p.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish to %s: timed out", p.topic)
	}
}

func (p *MQTTPublisher) Ping(ctx context.Context) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt connection is not open")
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
