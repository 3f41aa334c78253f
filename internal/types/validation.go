package types

import "fmt"

// MetricRange defines the plausibility contract for one metric type: the
// unit readings are expressed in and the closed interval of values accepted
// for persistence.
type MetricRange struct {
	Type MetricType `json:"metric_type"`
	Unit string     `json:"unit"`
	Min  float64    `json:"min"`
	Max  float64    `json:"max"`
}

// MetricRanges is the authoritative plausibility table, keyed by metric
// type. The bounds are policy, not physics: wide enough for ambient outdoor
// sensing, tight enough to catch unit mix-ups and corrupted payloads.
var MetricRanges = map[MetricType]MetricRange{
	MetricTemperature: {Type: MetricTemperature, Unit: "celsius", Min: -50, Max: 60},
	MetricHumidity:    {Type: MetricHumidity, Unit: "percent", Min: 0, Max: 100},
	MetricWindSpeed:   {Type: MetricWindSpeed, Unit: "km/h", Min: 0, Max: 200},
}

// ValidateReadingValue checks a value against the plausibility range for its
// metric type. Both bounds are inclusive. The function is pure and reads no
// stored state; callers run it before touching storage so rejected readings
// are never persisted.
func ValidateReadingValue(metricType MetricType, value float64) error {
	r, ok := MetricRanges[metricType]
	if !ok {
		return NewAppError(
			ErrCodeValidationInvalidMetricType,
			fmt.Sprintf("unknown metric type %q", metricType),
			nil,
		)
	}
	if value < r.Min || value > r.Max {
		return NewAppErrorWithDetails(
			ErrCodeValidationOutOfRange,
			fmt.Sprintf("%s must be between %.1f and %.1f", metricType, r.Min, r.Max),
			nil,
			map[string]any{
				"metric_type": metricType,
				"value":       value,
				"min":         r.Min,
				"max":         r.Max,
			},
		)
	}
	return nil
}
