package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"climatestats/internal/core"
	"climatestats/internal/metrics"
	"climatestats/internal/types"
)

// --- Service Interfaces ---

// MetricEngine is the ingestion and aggregation engine this handler drives.
// Mirrors the concrete metrics.Engine methods used here.
type MetricEngine interface {
	Ingest(ctx context.Context, p metrics.IngestParams) (*types.MetricReading, error)
	Query(ctx context.Context, p metrics.QueryParams) (*types.QueryResult, error)
}

// --- Request Models ---

// IngestMetricRequest is the request body for POST /metrics.
//
// SensorID and Value are pointers so that explicit zeroes survive the
// required check: sensor_id=0 must reach the engine (and fail as an unknown
// sensor) and value=0 is a legal humidity reading.
type IngestMetricRequest struct {
	SensorID   *int64         `json:"sensor_id" validate:"required"`
	MetricType string         `json:"metric_type" validate:"required,metric_type"`
	Value      *float64       `json:"value" validate:"required"`
	Timestamp  *types.Instant `json:"timestamp,omitempty"`
}

// --- Handler ---

// MetricsHandler exposes reading ingestion and aggregation queries.
type MetricsHandler struct {
	engine    MetricEngine
	validator *core.Validator
	logger    *slog.Logger
}

// NewMetricsHandler creates a MetricsHandler with the provided dependencies.
func NewMetricsHandler(engine MetricEngine, v *core.Validator, l *slog.Logger) *MetricsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &MetricsHandler{
		engine:    engine,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts metric routes on the provided chi.Router.
func (h *MetricsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/metrics", func(r chi.Router) {
		r.Post("/", h.Ingest)
		r.Get("/query", h.Query)
	})
}

// --- Handler Methods ---

// Ingest handles POST /metrics.
//
//  1. Decode and validate the request body (shape-level checks only).
//  2. Delegate to the engine, which resolves the sensor, range-checks the
//     value, and defaults a missing timestamp to the ingestion instant.
//  3. Return 201 Created with the stored reading, including its
//     store-assigned id and timestamp.
func (h *MetricsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestMetricRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	params := metrics.IngestParams{
		SensorID:   *req.SensorID,
		MetricType: req.MetricType,
		Value:      *req.Value,
	}
	if req.Timestamp != nil {
		params.Timestamp = req.Timestamp.Time
	}

	reading, err := h.engine.Ingest(r.Context(), params)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: reading})
}

// Query handles GET /metrics/query.
//
// Query parameters:
//   - stat: required, one of avg|min|max|sum.
//   - sensors: optional comma-separated sensor ids; omitted means all sensors.
//   - metrics: optional, repeatable metric type names; omitted means all types.
//   - start, end: optional ISO-8601 instants; the engine applies its rolling
//     look-back window when absent.
func (h *MetricsHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stat := q.Get("stat")
	if stat == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"stat is required",
			nil,
		))
		return
	}

	sensorIDs, err := parseSensorList(q.Get("sensors"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	metricNames := splitList(q["metrics"])

	var start, end *time.Time
	if raw := q.Get("start"); raw != "" {
		instant, err := types.ParseInstant(raw)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		start = &instant.Time
	}
	if raw := q.Get("end"); raw != "" {
		instant, err := types.ParseInstant(raw)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		end = &instant.Time
	}

	result, err := h.engine.Query(r.Context(), metrics.QueryParams{
		Stat:      stat,
		SensorIDs: sensorIDs,
		Metrics:   metricNames,
		Start:     start,
		End:       end,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// --- Helper Functions ---

// parseSensorList parses a comma-separated list of sensor ids. An empty
// input returns nil, meaning no sensor restriction.
func parseSensorList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidSensorList,
				"sensors must be a comma-separated list of integers",
				err,
				map[string]any{"value": part},
			)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitList flattens repeated query parameters, additionally splitting each
// occurrence on commas, so both ?metrics=a&metrics=b and ?metrics=a,b work.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
