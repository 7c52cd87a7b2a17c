package paiingestor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gitlab.com/plantai/plantai.server/src/production/PAI.IngestorService/client"
	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	messaging "gitlab.com/plantai/plantai.server/src/production/PAI.Messaging"
	metrics "gitlab.com/plantai/plantai.server/src/production/PAI.Metrics"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

const unknownDevice = "unknown"

// Forwarder submits one raw reading to the API service
type Forwarder interface {
	SubmitReading(ctx context.Context, deviceID string, payload map[string]any) (*models.Readout, error)
}

// Ingestor subscribes to device sensor topics and forwards readings in batches
type Ingestor struct {
	cfg        config.IngestorConfig
	forwarder  Forwarder
	mqttClient mqtt.Client
	msgCh      chan models.SensorMessage
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	logger     *logger.Logger
}

func New(cfg config.IngestorConfig, forwarder Forwarder, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:       cfg,
		forwarder: forwarder,
		msgCh:     make(chan models.SensorMessage, 4096),
		done:      make(chan struct{}),
		logger:    log.WithComponent("mqtt_ingestor"),
	}
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts, err := messaging.NewClientOptions(i.cfg.MQTT)
	if err != nil {
		return err
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.MQTT.Subscription()
		i.logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.run(ctx)
	return nil
}

// run starts the batch writer
func (i *Ingestor) run(ctx context.Context) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.batchWriter(ctx)
	}()
}

func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		if i.mqttClient != nil && i.mqttClient.IsConnected() {
			i.mqttClient.Disconnect(500)
		}
		close(i.done)
		i.wg.Wait()
	})
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.handleMessage(m.Topic(), m.Payload())
}

// handleMessage queues a well-formed reading; anything else is reported back to the device
func (i *Ingestor) handleMessage(topic string, raw []byte) {
	i.logger.Debug().Str("topic", topic).Int("bytes", len(raw)).Msg("Received MQTT message")

	deviceID, ok := DeviceIDFromTopic(topic)
	if !ok {
		metrics.IngestorMessagesTotal.WithLabelValues("invalid_topic").Inc()
		i.logger.Warn().Str("topic", topic).Str("expected", "plants/<device_id>/sensors").Msg("Invalid topic format")
		i.publishError(deviceID, "invalid_topic", fmt.Sprintf("Invalid topic format: %s, expected: plants/<device_id>/sensors", topic), nil)
		return
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		metrics.IngestorMessagesTotal.WithLabelValues("invalid_payload").Inc()
		i.publishError(deviceID, "invalid_payload", "Payload must be a JSON object", nil)
		return
	}

	msg := models.SensorMessage{
		Topic:      topic,
		DeviceID:   deviceID,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	select {
	case i.msgCh <- msg:
	case <-i.done:
	}
}

func (i *Ingestor) batchWriter(ctx context.Context) {
	batch := make([]models.SensorMessage, 0, i.cfg.Batch.Size)
	timer := time.NewTimer(i.cfg.Batch.Window)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		i.process(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-i.done:
			// Drain what was already queued
			for {
				select {
				case msg := <-i.msgCh:
					batch = append(batch, msg)
				default:
					flush()
					return
				}
			}
		case msg := <-i.msgCh:
			batch = append(batch, msg)
			if len(batch) >= i.cfg.Batch.Size {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(i.cfg.Batch.Window)
			}
		case <-timer.C:
			flush()
			timer.Reset(i.cfg.Batch.Window)
		}
	}
}

// process forwards each reading of a batch in arrival order
func (i *Ingestor) process(ctx context.Context, batch []models.SensorMessage) {
	i.logger.Info().Int("batch_size", len(batch)).Msg("Flushing batch to API Service")
	metrics.IngestorBatchSize.Observe(float64(len(batch)))

	forwarded := 0
	for _, msg := range batch {
		readout, err := i.forwarder.SubmitReading(ctx, msg.DeviceID, msg.Payload)
		if err != nil {
			i.reportFailure(msg, err)
			continue
		}
		forwarded++
		metrics.IngestorMessagesTotal.WithLabelValues("forwarded").Inc()
		i.logger.Debug().
			Str("device_id", msg.DeviceID).
			Str("reading_id", readout.SensorDataID).
			Str("status_color", string(readout.StatusColor)).
			Msg("Reading accepted")
	}

	i.logger.Info().Int("count", forwarded).Int("failed", len(batch)-forwarded).Msg("Processed readings")
}

func (i *Ingestor) reportFailure(msg models.SensorMessage, err error) {
	var rejected *client.RejectedError
	if errors.As(err, &rejected) {
		metrics.IngestorMessagesTotal.WithLabelValues("rejected").Inc()
		i.logger.Warn().Err(err).Str("device_id", msg.DeviceID).Msg("Reading rejected by API")
		code := rejected.Kind
		if code == "" {
			code = rejected.Code
		}
		i.publishError(msg.DeviceID, code, rejected.Message, rejected.Fields)
		return
	}

	metrics.IngestorMessagesTotal.WithLabelValues("failed").Inc()
	i.logger.Error().Err(err).Str("device_id", msg.DeviceID).Msg("Error forwarding reading to API")
	i.publishError(msg.DeviceID, "forward_failed", fmt.Sprintf("Failed to forward reading: %v", err), nil)
}

// DeviceIDFromTopic extracts the device id from plants/<device_id>/sensors
func DeviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "plants" || parts[2] != "sensors" || parts[1] == "" {
		if len(parts) >= 2 && parts[1] != "" {
			return parts[1], false
		}
		return unknownDevice, false
	}
	return parts[1], true
}

// ErrorTopic is where rejections for deviceID are published
func (i *Ingestor) ErrorTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s", i.cfg.ErrorTopicPrefix, deviceID)
}

// publishError publishes an error message to the error topic for device feedback
func (i *Ingestor) publishError(deviceID, errorType, message string, fields []string) {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return
	}

	payload := models.IngestError{
		DeviceID:   deviceID,
		Error:      errorType,
		Message:    message,
		Fields:     fields,
		OccurredAt: time.Now().UTC(),
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		i.logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := i.ErrorTopic(deviceID)
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)

	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		i.logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	} else {
		i.logger.Info().Str("topic", errorTopic).Str("error_type", errorType).Msg("Published error")
	}
}
