package sensor

import (
	"strings"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// Advise builds the care advisory: one sentence each for temperature,
// humidity and soil moisture, in that order.
func Advise(m models.Measurements) string {
	return strings.Join([]string{
		temperatureAdvice(m.Temperature),
		humidityAdvice(m.Humidity),
		soilAdvice(m.SoilMoisture),
	}, " ")
}

func temperatureAdvice(t float64) string {
	switch {
	case t < 15:
		return "Temperature is too cool, move to a warmer spot."
	case t > 30:
		return "Temperature is too hot, ensure good ventilation."
	default:
		return "Temperature is comfortable."
	}
}

func humidityAdvice(h float64) string {
	switch {
	case h < 30:
		return "Humidity is low, consider misting."
	case h > 80:
		return "Humidity is very high, improve air circulation."
	default:
		return "Humidity is good."
	}
}

func soilAdvice(s float64) string {
	switch {
	case s < 20:
		return "Soil is dry, water now."
	case s > 80:
		return "Soil is very wet, avoid overwatering."
	default:
		return "Soil moisture is healthy."
	}
}
