package sensor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// Canonical field names, in reporting order
const (
	FieldTemperature  = "temperature"
	FieldPressure     = "pressure"
	FieldHumidity     = "humidity"
	FieldSoilMoisture = "soil_moisture"
)

var requiredFields = []string{FieldTemperature, FieldPressure, FieldHumidity, FieldSoilMoisture}

// ValidationErrorKind tells a missing field apart from a malformed one
type ValidationErrorKind string

const (
	MissingFields    ValidationErrorKind = "missing_fields"
	NonNumericFields ValidationErrorKind = "non_numeric_fields"
)

// ValidationError is returned when a reading cannot be accepted
type ValidationError struct {
	Kind   ValidationErrorKind
	Fields []string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingFields:
		return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
	case NonNumericFields:
		return fmt.Sprintf("fields must be numeric: %s", strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("invalid reading: %s", strings.Join(e.Fields, ", "))
}

// Validate checks that input carries the four numeric fields and returns them.
// Every missing field is reported; if none are missing, every non-numeric one is.
func Validate(input map[string]any) (models.Measurements, error) {
	var missing []string
	for _, field := range requiredFields {
		if _, ok := input[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return models.Measurements{}, &ValidationError{Kind: MissingFields, Fields: missing}
	}

	values := make(map[string]float64, len(requiredFields))
	var malformed []string
	for _, field := range requiredFields {
		v, ok := toFloat(input[field])
		if !ok {
			malformed = append(malformed, field)
			continue
		}
		values[field] = v
	}
	if len(malformed) > 0 {
		return models.Measurements{}, &ValidationError{Kind: NonNumericFields, Fields: malformed}
	}

	return models.Measurements{
		Temperature:  values[FieldTemperature],
		Pressure:     values[FieldPressure],
		Humidity:     values[FieldHumidity],
		SoilMoisture: values[FieldSoilMoisture],
	}, nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		// nil, bool, objects and arrays
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
