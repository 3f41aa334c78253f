package types

import "time"

// MaxSensorNameLength bounds sensor names at the API edge.
const MaxSensorNameLength = 200

// Sensor is a registered measurement source. Sensor records are immutable
// after creation and are never deleted, so reading rows can reference them
// by id indefinitely.
type Sensor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MetricReading is one timestamped measurement reported by a sensor. The
// readings table is append-only: rows are never updated or deleted.
type MetricReading struct {
	ID         int64      `json:"id"`
	SensorID   int64      `json:"sensor_id"`
	MetricType MetricType `json:"metric_type"`
	Value      float64    `json:"value"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ReadingFilter selects readings by sensor set, metric-type set, and an
// inclusive time window. An empty sensor or metric set means no restriction
// on that dimension; a zero time leaves that bound open.
type ReadingFilter struct {
	SensorIDs   []int64
	MetricTypes []MetricType
	Start       time.Time
	End         time.Time
}

// AggregateRow is the single-row result of an aggregation pushed down to
// storage. Value is nil when no readings matched; the caller decides what
// an empty result means for the requested stat.
type AggregateRow struct {
	Count int64
	Value *float64
}

// QueryResult is the outcome of an aggregation query. It echoes the fully
// resolved filter parameters alongside the computed statistic, so callers
// can always tell which sensors, metrics, and window actually applied,
// whether they were given explicitly or filled in by defaults.
type QueryResult struct {
	Stat         Stat         `json:"stat"`
	Value        float64      `json:"value"`
	MatchedCount int64        `json:"matched_count"`
	Sensors      []int64      `json:"sensors"`
	Metrics      []MetricType `json:"metrics"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
}
