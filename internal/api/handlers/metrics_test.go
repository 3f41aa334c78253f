package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climatestats/internal/core"
	"climatestats/internal/metrics"
	"climatestats/internal/types"
)

// =============================================================================
// Mock Implementations for Metrics Handler
// =============================================================================

type mockMetricEngine struct {
	ingestFn func(ctx context.Context, p metrics.IngestParams) (*types.MetricReading, error)
	queryFn  func(ctx context.Context, p metrics.QueryParams) (*types.QueryResult, error)

	// Track calls for assertions.
	lastIngest *metrics.IngestParams
	lastQuery  *metrics.QueryParams
}

func (m *mockMetricEngine) Ingest(ctx context.Context, p metrics.IngestParams) (*types.MetricReading, error) {
	m.lastIngest = &p
	if m.ingestFn != nil {
		return m.ingestFn(ctx, p)
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &types.MetricReading{
		ID:         42,
		SensorID:   p.SensorID,
		MetricType: types.MetricType(p.MetricType),
		Value:      p.Value,
		Timestamp:  ts,
	}, nil
}

func (m *mockMetricEngine) Query(ctx context.Context, p metrics.QueryParams) (*types.QueryResult, error) {
	m.lastQuery = &p
	if m.queryFn != nil {
		return m.queryFn(ctx, p)
	}
	return &types.QueryResult{Stat: types.Stat(p.Stat)}, nil
}

// =============================================================================
// Test Helper
// =============================================================================

func newTestMetricsHandler() (*MetricsHandler, *mockMetricEngine) {
	engine := &mockMetricEngine{}

	logger := slog.Default()
	validator := core.NewValidator(logger)

	handler := NewMetricsHandler(engine, validator, logger)
	return handler, engine
}

// =============================================================================
// Ingest Tests
// =============================================================================

func TestMetricsHandler_Ingest_Success(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	body := `{"sensor_id":1,"metric_type":"temperature","value":21.5}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.Ingest(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	require.NotNil(t, engine.lastIngest)
	assert.Equal(t, int64(1), engine.lastIngest.SensorID)
	assert.Equal(t, "temperature", engine.lastIngest.MetricType)
	assert.Equal(t, 21.5, engine.lastIngest.Value)
	assert.True(t, engine.lastIngest.Timestamp.IsZero(), "omitted timestamp should reach the engine as zero")

	var resp struct {
		Data types.MetricReading `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(42), resp.Data.ID)
	assert.Equal(t, types.MetricTemperature, resp.Data.MetricType)
	assert.False(t, resp.Data.Timestamp.IsZero(), "response should carry the assigned timestamp")
}

func TestMetricsHandler_Ingest_WithTimestamp(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	body := `{"sensor_id":1,"metric_type":"humidity","value":55,"timestamp":"2026-08-20T12:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body))

	rr := httptest.NewRecorder()
	handler.Ingest(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	require.NotNil(t, engine.lastIngest)
	expected := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	assert.True(t, engine.lastIngest.Timestamp.Equal(expected),
		"expected %v, got %v", expected, engine.lastIngest.Timestamp)
}

func TestMetricsHandler_Ingest_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing sensor_id", `{"metric_type":"temperature","value":21.5}`},
		{"missing metric_type", `{"sensor_id":1,"value":21.5}`},
		{"missing value", `{"sensor_id":1,"metric_type":"temperature"}`},
		{"empty body object", `{}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, engine := newTestMetricsHandler()

			req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			handler.Ingest(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Nil(t, engine.lastIngest, "engine should not be reached on validation failure")

			var errResp core.APIErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
			assert.Equal(t, string(types.ErrCodeValidationMissingField), errResp.Error.Code)
		})
	}
}

func TestMetricsHandler_Ingest_ZeroValueAccepted(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	// value=0 is a legal humidity reading and must not trip the required check.
	body := `{"sensor_id":1,"metric_type":"humidity","value":0}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body))

	rr := httptest.NewRecorder()
	handler.Ingest(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, engine.lastIngest)
	assert.Equal(t, 0.0, engine.lastIngest.Value)
}

func TestMetricsHandler_Ingest_SensorIDZeroReachesEngine(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	// sensor_id=0 is present, so shape validation passes; the engine decides
	// it is an unknown sensor.
	engine.ingestFn = func(ctx context.Context, p metrics.IngestParams) (*types.MetricReading, error) {
		return nil, types.NewAppError(types.ErrCodeNotFoundSensor, "sensor 0 not found", nil)
	}

	body := `{"sensor_id":0,"metric_type":"temperature","value":21.5}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body))

	rr := httptest.NewRecorder()
	handler.Ingest(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	require.NotNil(t, engine.lastIngest)
	assert.Equal(t, int64(0), engine.lastIngest.SensorID)
}

func TestMetricsHandler_Ingest_InvalidMetricType(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	body := `{"sensor_id":1,"metric_type":"pressure","value":1013}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body))

	rr := httptest.NewRecorder()
	handler.Ingest(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, engine.lastIngest)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationInvalidMetricType), errResp.Error.Code)
}

func TestMetricsHandler_Ingest_InvalidTimestamp(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	body := `{"sensor_id":1,"metric_type":"temperature","value":21.5,"timestamp":"yesterday"}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body))

	rr := httptest.NewRecorder()
	handler.Ingest(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, engine.lastIngest)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationInvalidTimestamp), errResp.Error.Code)
}

func TestMetricsHandler_Ingest_OutOfRangeValue(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	engine.ingestFn = func(ctx context.Context, p metrics.IngestParams) (*types.MetricReading, error) {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationOutOfRange,
			"temperature must be between -50.0 and 60.0",
			nil,
			map[string]any{"value": p.Value},
		)
	}

	body := `{"sensor_id":1,"metric_type":"temperature","value":120}`
	req := httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(body))

	rr := httptest.NewRecorder()
	handler.Ingest(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationOutOfRange), errResp.Error.Code)
}

// =============================================================================
// Query Tests
// =============================================================================

func TestMetricsHandler_Query_Success(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	start := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	engine.queryFn = func(ctx context.Context, p metrics.QueryParams) (*types.QueryResult, error) {
		return &types.QueryResult{
			Stat:         types.StatAvg,
			Value:        22.0,
			MatchedCount: 2,
			Sensors:      []int64{1, 2},
			Metrics:      []types.MetricType{types.MetricTemperature},
			Start:        start,
			End:          end,
		}, nil
	}

	url := "/metrics/query?stat=avg&sensors=1,2&metrics=temperature" +
		"&start=2026-08-20T00:00:00Z&end=2026-08-21T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)

	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, engine.lastQuery)
	assert.Equal(t, "avg", engine.lastQuery.Stat)
	assert.Equal(t, []int64{1, 2}, engine.lastQuery.SensorIDs)
	assert.Equal(t, []string{"temperature"}, engine.lastQuery.Metrics)
	require.NotNil(t, engine.lastQuery.Start)
	require.NotNil(t, engine.lastQuery.End)
	assert.True(t, engine.lastQuery.Start.Equal(start))
	assert.True(t, engine.lastQuery.End.Equal(end))

	var resp struct {
		Data types.QueryResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, types.StatAvg, resp.Data.Stat)
	assert.Equal(t, 22.0, resp.Data.Value)
	assert.Equal(t, int64(2), resp.Data.MatchedCount)
	assert.Equal(t, []int64{1, 2}, resp.Data.Sensors)
}

func TestMetricsHandler_Query_MissingStat(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	req := httptest.NewRequest(http.MethodGet, "/metrics/query?sensors=1", nil)
	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, engine.lastQuery, "engine should not be reached without a stat")

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errResp.Error.Code)
}

func TestMetricsHandler_Query_OmittedFiltersPassEmpty(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	req := httptest.NewRequest(http.MethodGet, "/metrics/query?stat=sum", nil)
	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, engine.lastQuery)
	assert.Equal(t, "sum", engine.lastQuery.Stat)
	assert.Nil(t, engine.lastQuery.SensorIDs)
	assert.Nil(t, engine.lastQuery.Metrics)
	assert.Nil(t, engine.lastQuery.Start)
	assert.Nil(t, engine.lastQuery.End)
}

func TestMetricsHandler_Query_RepeatedMetricsParams(t *testing.T) {
	t.Run("repeated keys", func(t *testing.T) {
		handler, engine := newTestMetricsHandler()

		req := httptest.NewRequest(http.MethodGet, "/metrics/query?stat=avg&metrics=temperature&metrics=humidity", nil)
		rr := httptest.NewRecorder()
		handler.Query(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, engine.lastQuery)
		assert.Equal(t, []string{"temperature", "humidity"}, engine.lastQuery.Metrics)
	})

	t.Run("comma separated", func(t *testing.T) {
		handler, engine := newTestMetricsHandler()

		req := httptest.NewRequest(http.MethodGet, "/metrics/query?stat=avg&metrics=temperature,humidity", nil)
		rr := httptest.NewRecorder()
		handler.Query(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, engine.lastQuery)
		assert.Equal(t, []string{"temperature", "humidity"}, engine.lastQuery.Metrics)
	})
}

func TestMetricsHandler_Query_InvalidSensorList(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	req := httptest.NewRequest(http.MethodGet, "/metrics/query?stat=avg&sensors=1,abc", nil)
	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, engine.lastQuery)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationInvalidSensorList), errResp.Error.Code)
	assert.Equal(t, "abc", errResp.Error.Details["value"])
}

func TestMetricsHandler_Query_InvalidStartInstant(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	req := httptest.NewRequest(http.MethodGet, "/metrics/query?stat=avg&start=lastweek", nil)
	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, engine.lastQuery)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationInvalidTimestamp), errResp.Error.Code)
}

func TestMetricsHandler_Query_EmptyResult(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	engine.queryFn = func(ctx context.Context, p metrics.QueryParams) (*types.QueryResult, error) {
		return nil, types.NewAppError(
			types.ErrCodeQueryEmptyResult,
			"no readings matched the query",
			nil,
		)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics/query?stat=min&metrics=wind_speed", nil)
	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeQueryEmptyResult), errResp.Error.Code)
}

func TestMetricsHandler_Query_InvalidRange(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	engine.queryFn = func(ctx context.Context, p metrics.QueryParams) (*types.QueryResult, error) {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidTimeRange,
			"start must not be after end",
			nil,
		)
	}

	url := "/metrics/query?stat=avg&start=2026-08-21T00:00:00Z&end=2026-08-20T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationInvalidTimeRange), errResp.Error.Code)
}

func TestMetricsHandler_Query_UnknownStat(t *testing.T) {
	handler, engine := newTestMetricsHandler()

	engine.queryFn = func(ctx context.Context, p metrics.QueryParams) (*types.QueryResult, error) {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidStat,
			`unknown stat "median"`,
			nil,
		)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics/query?stat=median", nil)
	rr := httptest.NewRecorder()
	handler.Query(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var errResp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, string(types.ErrCodeValidationInvalidStat), errResp.Error.Code)
}

// =============================================================================
// Route Registration Test
// =============================================================================

func TestMetricsHandler_RegisterRoutes(t *testing.T) {
	handler, _ := newTestMetricsHandler()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/metrics/"},
		{http.MethodGet, "/metrics/query"},
	}

	registeredRoutes := make(map[string]bool)
	walkFn := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		registeredRoutes[method+" "+route] = true
		return nil
	}

	err := chi.Walk(r, walkFn)
	require.NoError(t, err)

	for _, rt := range routes {
		key := rt.method + " " + rt.path
		assert.True(t, registeredRoutes[key], "Route not registered: %s %s", rt.method, rt.path)
	}
}
