package paimodels

import (
	"time"
)

// ReadingLogCap is the maximum number of readings retained; older ones are evicted first
const ReadingLogCap = 1000

// DefaultSource tags readings that arrived through the sensor API
const DefaultSource = "sensor_api"

// Measurements are the four validated sensor values
type Measurements struct {
	Temperature  float64 `bson:"temperature" json:"temperature"`
	Pressure     float64 `bson:"pressure" json:"pressure"`
	Humidity     float64 `bson:"humidity" json:"humidity"`
	SoilMoisture float64 `bson:"soil_moisture" json:"soil_moisture"`
}

// SensorReading is one accepted reading as persisted in the reading log
type SensorReading struct {
	ID        string    `bson:"id" json:"id"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Source    string    `bson:"source" json:"source"`

	Measurements `bson:",inline"`
}

// StatusColor is the traffic-light health indicator
type StatusColor string

const (
	StatusGreen  StatusColor = "green"
	StatusYellow StatusColor = "yellow"
	StatusRed    StatusColor = "red"
)
