// Package handlers contains the HTTP handler implementations for the
// Climate Stats API.
//
// Handlers depend on small locally-defined interfaces rather than concrete
// repository or engine types, so each handler can be tested with in-package
// fakes and wired with the real implementations in cmd/api.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"climatestats/internal/core"
	"climatestats/internal/types"
)

// --- Service Interfaces ---

// SensorStore defines the data access contract for sensor records.
// Mirrors the concrete db.SensorRepository methods used by this handler.
type SensorStore interface {
	Create(ctx context.Context, name string) (*types.Sensor, error)
	GetByID(ctx context.Context, id int64) (*types.Sensor, error)
	List(ctx context.Context, params types.ListParams) ([]*types.Sensor, types.PageInfo, error)
}

// SensorReadingLister provides reading history for a single sensor. The
// implementation verifies the sensor exists before listing.
type SensorReadingLister interface {
	ListForSensor(ctx context.Context, sensorID int64, params types.ListParams) ([]*types.MetricReading, types.PageInfo, error)
}

// --- Request Models ---

// CreateSensorRequest is the request body for POST /sensors.
type CreateSensorRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// --- Handler ---

// SensorHandler manages sensor registration and lookup.
type SensorHandler struct {
	store     SensorStore
	readings  SensorReadingLister
	validator *core.Validator
	logger    *slog.Logger
}

// NewSensorHandler creates a SensorHandler with the provided dependencies.
func NewSensorHandler(store SensorStore, readings SensorReadingLister, v *core.Validator, l *slog.Logger) *SensorHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SensorHandler{
		store:     store,
		readings:  readings,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts sensor routes on the provided chi.Router.
func (h *SensorHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sensors", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{sensorID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Get("/metrics", h.ListReadings)
		})
	})
}

// --- Handler Methods ---

// Create handles POST /sensors.
//
//  1. Decode and validate the request body.
//  2. Persist via SensorStore.Create; a duplicate name surfaces as 409.
//  3. Return 201 Created with the stored sensor.
func (h *SensorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSensorRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sensor, err := h.store.Create(r.Context(), req.Name)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "sensor created",
		"sensor_id", sensor.ID,
		"name", sensor.Name,
	)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: sensor})
}

// Get handles GET /sensors/{sensorID}. Unknown ids surface as 404.
func (h *SensorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseSensorID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	sensor, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sensor})
}

// List handles GET /sensors with limit/offset pagination.
func (h *SensorHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	sensors, pageInfo, err := h.store.List(r.Context(), params)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: sensors,
		Meta: &types.ResponseMeta{Pagination: &pageInfo},
	})
}

// ListReadings handles GET /sensors/{sensorID}/metrics, returning the
// sensor's stored readings newest first.
func (h *SensorHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	id, err := parseSensorID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	readings, pageInfo, err := h.readings.ListForSensor(r.Context(), id, params)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: readings,
		Meta: &types.ResponseMeta{Pagination: &pageInfo},
	})
}

// --- Helper Functions ---

// parseSensorID extracts and parses the {sensorID} URL parameter.
func parseSensorID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "sensorID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidSensorID,
			"sensor id must be an integer",
			err,
		)
	}
	return id, nil
}

// parseListParams reads limit/offset query parameters. Absent parameters
// leave the zero value, which the store normalizes to its defaults.
func parseListParams(r *http.Request) (types.ListParams, error) {
	var params types.ListParams

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > types.MaxListLimit {
			return params, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"limit must be a number between 1 and "+strconv.Itoa(types.MaxListLimit),
				err,
			)
		}
		params.Limit = limit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return params, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"offset must be a non-negative number",
				err,
			)
		}
		params.Offset = offset
	}

	return params, nil
}
