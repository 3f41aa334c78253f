package types

import "fmt"

// MetricType identifies the kind of measurement a reading carries. The set
// is closed: ingestion and queries reject anything outside it before the
// value reaches storage.
type MetricType string

const (
	MetricTemperature MetricType = "temperature"
	MetricHumidity    MetricType = "humidity"
	MetricWindSpeed   MetricType = "wind_speed"
)

// AllMetricTypes lists every valid metric type in declaration order. Query
// resolution uses it as the expansion of an omitted metrics filter.
var AllMetricTypes = []MetricType{MetricTemperature, MetricHumidity, MetricWindSpeed}

// ParseMetricType converts a wire string into a MetricType.
func ParseMetricType(s string) (MetricType, error) {
	switch MetricType(s) {
	case MetricTemperature, MetricHumidity, MetricWindSpeed:
		return MetricType(s), nil
	}
	return "", NewAppErrorWithDetails(
		ErrCodeValidationInvalidMetricType,
		fmt.Sprintf("unknown metric type %q", s),
		nil,
		map[string]any{"allowed": AllMetricTypes},
	)
}

// Stat identifies the aggregation applied to the readings matched by a
// query. Like MetricType, the set is closed.
type Stat string

const (
	StatAvg Stat = "avg"
	StatMin Stat = "min"
	StatMax Stat = "max"
	StatSum Stat = "sum"
)

// AllStats lists every supported aggregation.
var AllStats = []Stat{StatAvg, StatMin, StatMax, StatSum}

// ParseStat converts a wire string into a Stat.
func ParseStat(s string) (Stat, error) {
	switch Stat(s) {
	case StatAvg, StatMin, StatMax, StatSum:
		return Stat(s), nil
	}
	return "", NewAppErrorWithDetails(
		ErrCodeValidationInvalidStat,
		fmt.Sprintf("unknown stat %q", s),
		nil,
		map[string]any{"allowed": AllStats},
	)
}
