package db

import (
	"context"
	"fmt"
	"strings"

	"climatestats/internal/types"
)

// readingColumns is the standard column set for reading queries.
const readingColumns = `r.id, r.sensor_id, r.metric_type, r.value, r.timestamp`

// ReadingRepository provides data access for the append-only readings
// table. There are no update or delete operations: a stored reading is a
// historical fact.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a ReadingRepository backed by the given
// database handle.
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// statAggregates maps each Stat to its SQL aggregate expression. The map is
// closed; callers must reject unknown stats before reaching the repository.
var statAggregates = map[types.Stat]string{
	types.StatAvg: "AVG(r.value)",
	types.StatMin: "MIN(r.value)",
	types.StatMax: "MAX(r.value)",
	types.StatSum: "SUM(r.value)",
}

// buildReadingWhere renders the WHERE clause for a reading filter. An empty
// sensor or metric set adds no predicate, and both time bounds are
// inclusive. It returns the clause (possibly empty) and the bound args.
func buildReadingWhere(f types.ReadingFilter) (string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	if len(f.SensorIDs) > 0 {
		placeholders := make([]string, len(f.SensorIDs))
		for i, id := range f.SensorIDs {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args = append(args, id)
			argIdx++
		}
		conditions = append(conditions, fmt.Sprintf("r.sensor_id IN (%s)", strings.Join(placeholders, ", ")))
	}

	if len(f.MetricTypes) > 0 {
		placeholders := make([]string, len(f.MetricTypes))
		for i, mt := range f.MetricTypes {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args = append(args, string(mt))
			argIdx++
		}
		conditions = append(conditions, fmt.Sprintf("r.metric_type IN (%s)", strings.Join(placeholders, ", ")))
	}

	if !f.Start.IsZero() {
		conditions = append(conditions, fmt.Sprintf("r.timestamp >= $%d", argIdx))
		args = append(args, f.Start)
		argIdx++
	}

	if !f.End.IsZero() {
		conditions = append(conditions, fmt.Sprintf("r.timestamp <= $%d", argIdx))
		args = append(args, f.End)
		argIdx++
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// Insert appends one reading and fills in the database-assigned id. A zero
// timestamp falls through to the column default (NOW()); the returned
// timestamp is always the stored one. A dangling sensor reference surfaces
// as ErrCodeNotFoundSensor via the foreign key.
func (r *ReadingRepository) Insert(ctx context.Context, reading *types.MetricReading) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO readings (sensor_id, metric_type, value, timestamp)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
		RETURNING id, timestamp`,
		reading.SensorID, string(reading.MetricType), reading.Value, nilIfZeroTime(reading.Timestamp),
	)

	if err := row.Scan(&reading.ID, &reading.Timestamp); err != nil {
		if isForeignKeyViolation(err) {
			return types.NewAppError(
				types.ErrCodeNotFoundSensor,
				fmt.Sprintf("sensor %d not found", reading.SensorID),
				err,
			)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert reading", err)
	}
	return nil
}

// Query returns every reading matching the filter. Order is unspecified;
// callers that need an order sort or use ListForSensor.
func (r *ReadingRepository) Query(ctx context.Context, f types.ReadingFilter) ([]*types.MetricReading, error) {
	where, args := buildReadingWhere(f)

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM readings r
		%s`, readingColumns, where),
		args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query readings", err)
	}
	defer rows.Close()

	var readings []*types.MetricReading
	for rows.Next() {
		var m types.MetricReading
		if err := rows.Scan(&m.ID, &m.SensorID, &m.MetricType, &m.Value, &m.Timestamp); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading", err)
		}
		readings = append(readings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate readings", err)
	}
	return readings, nil
}

// Aggregate computes the requested statistic over the matching readings in
// a single pass on the database, returning the matched count alongside the
// reduced value. Value is nil when nothing matched; the caller owns the
// empty-result policy.
func (r *ReadingRepository) Aggregate(ctx context.Context, stat types.Stat, f types.ReadingFilter) (*types.AggregateRow, error) {
	agg, ok := statAggregates[stat]
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidStat,
			fmt.Sprintf("unknown stat %q", stat),
			nil,
		)
	}

	where, args := buildReadingWhere(f)

	var out types.AggregateRow
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*), %s
		FROM readings r
		%s`, agg, where),
		args...,
	).Scan(&out.Count, &out.Value)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate readings", err)
	}
	return &out, nil
}

// ListForSensor returns a page of one sensor's readings, newest first. It
// fetches one row beyond the limit to compute HasMore without a second
// count query.
func (r *ReadingRepository) ListForSensor(ctx context.Context, sensorID int64, params types.ListParams) ([]*types.MetricReading, types.PageInfo, error) {
	params = params.Normalize()

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM readings r
		WHERE r.sensor_id = $1
		ORDER BY r.timestamp DESC
		LIMIT $2 OFFSET $3`, readingColumns),
		sensorID, params.Limit+1, params.Offset,
	)
	if err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to list readings", err)
	}
	defer rows.Close()

	var readings []*types.MetricReading
	for rows.Next() {
		var m types.MetricReading
		if err := rows.Scan(&m.ID, &m.SensorID, &m.MetricType, &m.Value, &m.Timestamp); err != nil {
			return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading", err)
		}
		readings = append(readings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate readings", err)
	}

	page := types.PageInfo{Limit: params.Limit, Offset: params.Offset}
	if len(readings) > params.Limit {
		page.HasMore = true
		readings = readings[:params.Limit]
	}
	return readings, page, nil
}
