package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

var _ interfaces.AdvisoryPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes readouts to a topic keyed by reading id
type KafkaPublisher struct {
	client   sarama.Client
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaConfig returns the producer settings used for advisories
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.ClientID = "plantai-api"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	return cfg
}

// ConnectKafkaPublisher dials the brokers and creates a sync producer
func ConnectKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	client, err := sarama.NewClient(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return &KafkaPublisher{client: client, producer: producer, topic: cfg.Topic}, nil
}

// NewKafkaPublisher wraps an existing producer; Ping then only checks the producer exists
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, readout models.Readout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(readout)
	if err != nil {
		return fmt.Errorf("failed to marshal readout: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(readout.SensorDataID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Ping(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	if p.client.Closed() {
		return fmt.Errorf("kafka client is closed")
	}
	return p.client.RefreshMetadata(p.topic)
}

func (p *KafkaPublisher) Close() error {
	err := p.producer.Close()
	if p.client != nil && !p.client.Closed() {
		if cerr := p.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
