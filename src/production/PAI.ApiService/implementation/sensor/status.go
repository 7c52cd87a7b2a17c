package sensor

import (
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// band is a pair of open intervals around a healthy range
type band struct {
	criticalLow, criticalHigh float64
	warningLow, warningHigh   float64
}

var (
	temperatureBand  = band{criticalLow: 10, criticalHigh: 35, warningLow: 15, warningHigh: 30}
	humidityBand     = band{criticalLow: 20, criticalHigh: 90, warningLow: 30, warningHigh: 80}
	soilMoistureBand = band{criticalLow: 10, criticalHigh: 90, warningLow: 20, warningHigh: 80}
)

func (b band) score(v float64) int {
	switch {
	case v < b.criticalLow || v > b.criticalHigh:
		return 2
	case v < b.warningLow || v > b.warningHigh:
		return 1
	default:
		return 0
	}
}

// Severity sums the band scores of temperature, humidity and soil moisture
func Severity(m models.Measurements) int {
	return temperatureBand.score(m.Temperature) +
		humidityBand.score(m.Humidity) +
		soilMoistureBand.score(m.SoilMoisture)
}

// ColorFor maps a severity score to a status color
func ColorFor(score int) models.StatusColor {
	switch {
	case score >= 4:
		return models.StatusRed
	case score >= 2:
		return models.StatusYellow
	default:
		return models.StatusGreen
	}
}

// Classify returns the severity score and its color
func Classify(m models.Measurements) (int, models.StatusColor) {
	score := Severity(m)
	return score, ColorFor(score)
}
