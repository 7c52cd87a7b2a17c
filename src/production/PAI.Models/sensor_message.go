package paimodels

import "time"

// SensorMessage is one raw MQTT payload picked up by the ingestor
type SensorMessage struct {
	Topic      string         `json:"topic"`
	DeviceID   string         `json:"device_id"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}

// IngestError is reported back to a device when its reading was rejected
type IngestError struct {
	DeviceID   string    `json:"device_id"`
	Error      string    `json:"error"`
	Message    string    `json:"message,omitempty"`
	Fields     []string  `json:"fields,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
