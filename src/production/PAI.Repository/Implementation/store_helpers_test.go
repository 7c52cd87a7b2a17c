package implementation

import (
	"fmt"
	"time"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

var baseTime = time.Date(2026, 2, 21, 14, 30, 0, 0, time.UTC)

func testReading(i int) models.SensorReading {
	return models.SensorReading{
		ID:        fmt.Sprintf("reading-%d", i),
		Timestamp: baseTime.Add(time.Duration(i) * time.Second),
		Source:    models.DefaultSource,
		Measurements: models.Measurements{
			Temperature:  20 + float64(i%10),
			Pressure:     1013,
			Humidity:     50,
			SoilMoisture: 40.5,
		},
	}
}
