package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"climatestats/internal/types"
)

// sensorColumns is the standard column set for sensor queries.
const sensorColumns = `s.id, s.name`

// SensorRepository provides data access for the sensors table. It is the
// sensor directory: readings reference sensors by id, and every reference
// is checked against this repository before anything is persisted.
type SensorRepository struct {
	db DBTX
}

// NewSensorRepository creates a SensorRepository backed by the given
// database handle.
func NewSensorRepository(db DBTX) *SensorRepository {
	return &SensorRepository{db: db}
}

// scanSensor scans a single sensor row.
func scanSensor(row pgx.Row) (*types.Sensor, error) {
	var s types.Sensor
	if err := row.Scan(&s.ID, &s.Name); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create registers a new sensor and returns it with the database-assigned
// id. A name collision surfaces as ErrCodeConflictSensorName, enforced by
// the unique constraint on sensors.name rather than a racy pre-check.
func (r *SensorRepository) Create(ctx context.Context, name string) (*types.Sensor, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO sensors (name)
		VALUES ($1)
		RETURNING id, name`,
		name,
	)

	sensor, err := scanSensor(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, types.NewAppError(
				types.ErrCodeConflictSensorName,
				fmt.Sprintf("sensor with name %q already exists", name),
				err,
			)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create sensor", err)
	}
	return sensor, nil
}

// GetByID fetches a single sensor. An unknown id surfaces as
// ErrCodeNotFoundSensor.
func (r *SensorRepository) GetByID(ctx context.Context, id int64) (*types.Sensor, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM sensors s
		WHERE s.id = $1`, sensorColumns),
		id,
	)

	sensor, err := scanSensor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(
				types.ErrCodeNotFoundSensor,
				fmt.Sprintf("sensor %d not found", id),
				nil,
			)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get sensor", err)
	}
	return sensor, nil
}

// List returns a page of sensors ordered by id. It fetches one row beyond
// the limit to compute HasMore without a second count query.
func (r *SensorRepository) List(ctx context.Context, params types.ListParams) ([]*types.Sensor, types.PageInfo, error) {
	params = params.Normalize()

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM sensors s
		ORDER BY s.id
		LIMIT $1 OFFSET $2`, sensorColumns),
		params.Limit+1, params.Offset,
	)
	if err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to list sensors", err)
	}
	defer rows.Close()

	var sensors []*types.Sensor
	for rows.Next() {
		var s types.Sensor
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sensor", err)
		}
		sensors = append(sensors, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate sensors", err)
	}

	page := types.PageInfo{Limit: params.Limit, Offset: params.Offset}
	if len(sensors) > params.Limit {
		page.HasMore = true
		sensors = sensors[:params.Limit]
	}
	return sensors, page, nil
}

// ListIDs returns the ids of every registered sensor in ascending order.
// Query resolution uses it to expand an omitted sensors filter.
func (r *SensorRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id
		FROM sensors s
		ORDER BY s.id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list sensor ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sensor id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate sensor ids", err)
	}
	return ids, nil
}
