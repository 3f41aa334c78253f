// Package metrics implements the ingestion and aggregation engine for
// sensor readings. The engine owns every domain decision: the closed metric
// enum, plausibility validation, sensor reference checks, filter
// resolution, the default look-back window, and the empty-result policy.
// It keeps no state between calls; all state lives in the reading store.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"climatestats/internal/types"
)

// DefaultLookback is the rolling look-back window applied when a query
// omits both time bounds.
const DefaultLookback = 24 * time.Hour

// SensorDirectory is the directory view the engine needs: reference checks
// on ingest and expansion of an omitted sensors filter on query.
type SensorDirectory interface {
	GetByID(ctx context.Context, id int64) (*types.Sensor, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// ReadingStore is the persistence surface the engine writes to and queries.
type ReadingStore interface {
	Insert(ctx context.Context, reading *types.MetricReading) error
	Aggregate(ctx context.Context, stat types.Stat, f types.ReadingFilter) (*types.AggregateRow, error)
	ListForSensor(ctx context.Context, sensorID int64, params types.ListParams) ([]*types.MetricReading, types.PageInfo, error)
}

// Engine coordinates the sensor directory and the reading store. It is safe
// for concurrent use.
type Engine struct {
	directory SensorDirectory
	store     ReadingStore
	lookback  time.Duration
	logger    *slog.Logger
}

// NewEngine creates an Engine. A non-positive lookback falls back to
// DefaultLookback.
func NewEngine(directory SensorDirectory, store ReadingStore, lookback time.Duration, logger *slog.Logger) *Engine {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		directory: directory,
		store:     store,
		lookback:  lookback,
		logger:    logger,
	}
}

// IngestParams is one reading submission before domain validation. The
// metric type arrives as a raw string so the engine owns enum enforcement.
type IngestParams struct {
	SensorID   int64
	MetricType string
	Value      float64
	Timestamp  time.Time
}

// Ingest validates and appends one reading. Checks run in a fixed order:
// metric type against the closed enum, sensor reference against the
// directory, then value against the plausibility range. Nothing is
// persisted unless all three pass. A zero timestamp defaults to the
// current UTC instant at ingestion time.
func (e *Engine) Ingest(ctx context.Context, p IngestParams) (*types.MetricReading, error) {
	metricType, err := types.ParseMetricType(p.MetricType)
	if err != nil {
		return nil, err
	}

	if _, err := e.directory.GetByID(ctx, p.SensorID); err != nil {
		return nil, err
	}

	if err := types.ValidateReadingValue(metricType, p.Value); err != nil {
		return nil, err
	}

	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	reading := &types.MetricReading{
		SensorID:   p.SensorID,
		MetricType: metricType,
		Value:      p.Value,
		Timestamp:  ts.UTC(),
	}
	if err := e.store.Insert(ctx, reading); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "reading ingested",
		"reading_id", reading.ID,
		"sensor_id", reading.SensorID,
		"metric_type", reading.MetricType,
	)
	return reading, nil
}

// QueryParams is an aggregation request before resolution. Nil time bounds
// select the rolling default window at execution time; empty sensor and
// metric lists mean "all".
type QueryParams struct {
	Stat      string
	SensorIDs []int64
	Metrics   []string
	Start     *time.Time
	End       *time.Time
}

// Query resolves the filter, pushes the aggregation down to the store, and
// applies the empty-result policy: sum over nothing is 0, while avg, min,
// and max over nothing fail with ErrCodeQueryEmptyResult. The result echoes
// the fully resolved sensors, metrics, and window.
func (e *Engine) Query(ctx context.Context, p QueryParams) (*types.QueryResult, error) {
	stat, err := types.ParseStat(p.Stat)
	if err != nil {
		return nil, err
	}

	sensorIDs, err := e.resolveSensors(ctx, p.SensorIDs)
	if err != nil {
		return nil, err
	}

	metricTypes, err := resolveMetricTypes(p.Metrics)
	if err != nil {
		return nil, err
	}

	start, end, err := resolveWindow(p.Start, p.End, e.lookback)
	if err != nil {
		return nil, err
	}

	row, err := e.store.Aggregate(ctx, stat, types.ReadingFilter{
		SensorIDs:   sensorIDs,
		MetricTypes: metricTypes,
		Start:       start,
		End:         end,
	})
	if err != nil {
		return nil, err
	}

	result := &types.QueryResult{
		Stat:         stat,
		MatchedCount: row.Count,
		Sensors:      sensorIDs,
		Metrics:      metricTypes,
		Start:        start,
		End:          end,
	}

	if row.Count == 0 {
		if stat == types.StatSum {
			result.Value = 0
			return result, nil
		}
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeQueryEmptyResult,
			fmt.Sprintf("no readings matched the %s query", stat),
			nil,
			map[string]any{"start": start, "end": end},
		)
	}

	if row.Value == nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"aggregate returned no value for a non-empty match",
			nil,
		)
	}
	result.Value = *row.Value

	e.logger.DebugContext(ctx, "aggregation query served",
		"stat", stat,
		"matched_count", row.Count,
		"sensors", len(sensorIDs),
	)
	return result, nil
}

// ListForSensor returns a page of one sensor's stored readings, newest
// first, after confirming the sensor exists.
func (e *Engine) ListForSensor(ctx context.Context, sensorID int64, params types.ListParams) ([]*types.MetricReading, types.PageInfo, error) {
	if _, err := e.directory.GetByID(ctx, sensorID); err != nil {
		return nil, types.PageInfo{}, err
	}
	return e.store.ListForSensor(ctx, sensorID, params)
}

// resolveSensors turns the optional sensor filter into a concrete id list.
// Explicit ids are de-duplicated keeping first occurrence, and each must
// exist in the directory. An empty filter expands to every known sensor.
func (e *Engine) resolveSensors(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return e.directory.ListIDs(ctx)
	}

	resolved := dedupeInt64(ids)
	for _, id := range resolved {
		if _, err := e.directory.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// resolveMetricTypes parses and de-duplicates the optional metrics filter,
// keeping first occurrence. An empty filter expands to every metric type.
func resolveMetricTypes(raw []string) ([]types.MetricType, error) {
	if len(raw) == 0 {
		return append([]types.MetricType(nil), types.AllMetricTypes...), nil
	}

	seen := make(map[types.MetricType]struct{}, len(raw))
	resolved := make([]types.MetricType, 0, len(raw))
	for _, s := range raw {
		mt, err := types.ParseMetricType(s)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[mt]; ok {
			continue
		}
		seen[mt] = struct{}{}
		resolved = append(resolved, mt)
	}
	return resolved, nil
}

// resolveWindow applies the rolling look-back default and validates bound
// ordering. The default end is computed here, at query time, so an
// unbounded query always means "the lookback window ending now".
func resolveWindow(start, end *time.Time, lookback time.Duration) (time.Time, time.Time, error) {
	resolvedEnd := time.Now().UTC()
	if end != nil {
		resolvedEnd = end.UTC()
	}

	resolvedStart := resolvedEnd.Add(-lookback)
	if start != nil {
		resolvedStart = start.UTC()
	}

	if resolvedStart.After(resolvedEnd) {
		return time.Time{}, time.Time{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidTimeRange,
			"start must not be after end",
			nil,
			map[string]any{"start": resolvedStart, "end": resolvedEnd},
		)
	}
	return resolvedStart, resolvedEnd, nil
}

// dedupeInt64 removes duplicates preserving first-occurrence order.
func dedupeInt64(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
