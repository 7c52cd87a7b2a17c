package paimodels

import "time"

// Readout is a reading together with its derived advisory and status
type Readout struct {
	SensorDataID  string      `json:"sensor_data_id"`
	Timestamp     time.Time   `json:"timestamp"`
	AIReply       string      `json:"ai_reply"`
	StatusColor   StatusColor `json:"status_color"`
	SeverityScore int         `json:"severity_score"`

	// Only set when the readout is served from the log
	SensorReadings *Measurements `json:"sensor_readings,omitempty"`
	Source         string        `json:"source,omitempty"`
}
