package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/api/models"
	"github.com/skydeck/skydeck/internal/api/response"
	"github.com/skydeck/skydeck/internal/api/validation"
	"github.com/skydeck/skydeck/internal/precipitation"
)

// PrecipitationService detects imminent precipitation and manages alert
// cooldowns.
type PrecipitationService interface {
	CheckPrecipitation(ctx context.Context, lat, lon float64, locationID string) (*precipitation.Alert, error)
	CheckMultipleLocations(ctx context.Context, locations []precipitation.Location) []precipitation.Alert
	ClearCooldown(locationID string) error
	GetCooldownStatus(locationID string) (precipitation.CooldownStatus, error)
}

// PrecipitationHandler handles precipitation alert endpoints.
type PrecipitationHandler struct {
	service   PrecipitationService
	validator *validation.Validator
	log       zerolog.Logger
}

// NewPrecipitationHandler creates a new PrecipitationHandler.
func NewPrecipitationHandler(service PrecipitationService, v *validation.Validator, log zerolog.Logger) *PrecipitationHandler {
	return &PrecipitationHandler{
		service:   service,
		validator: v,
		log:       log,
	}
}

// CheckPrecipitation handles GET /v1/precipitation?lat&lon&locationId.
// The alert is null when nothing is imminent or the location is cooling down.
func (h *PrecipitationHandler) CheckPrecipitation(w http.ResponseWriter, r *http.Request) {
	lat, lon, fieldErrors := parseCoordinates(r)
	locationID := r.URL.Query().Get("locationId")
	if locationID == "" {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "locationId", Message: "is required", Code: "REQUIRED"})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	alert, err := h.service.CheckPrecipitation(r.Context(), lat, lon, locationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.PrecipitationResponse{Alert: alert})
}

// CheckBatch handles POST /v1/precipitation/batch.
func (h *PrecipitationHandler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	var req models.PrecipitationBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErrors := h.validator.Struct(req); fieldErrors != nil {
		response.BadRequest(w, r, "request validation failed", fieldErrors)
		return
	}

	locations := make([]precipitation.Location, len(req.Locations))
	for i, loc := range req.Locations {
		locations[i] = precipitation.Location{ID: loc.ID, Lat: *loc.Lat, Lon: *loc.Lon}
	}

	alerts := h.service.CheckMultipleLocations(r.Context(), locations)
	h.log.Debug().
		Int("locations", len(locations)).
		Int("alerts", len(alerts)).
		Msg("batch precipitation check completed")

	response.JSON(w, r, http.StatusOK, models.PrecipitationBatchResponse{Alerts: alerts})
}

// GetCooldown handles GET /v1/precipitation/cooldowns/{locationId}.
func (h *PrecipitationHandler) GetCooldown(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	status, err := h.service.GetCooldownStatus(locationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.CooldownResponse{
		LocationID:     locationID,
		CooldownStatus: status,
	})
}

// ClearCooldown handles DELETE /v1/precipitation/cooldowns/{locationId}.
// Clearing a location without a cooldown still succeeds.
func (h *PrecipitationHandler) ClearCooldown(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCooldown(chi.URLParam(r, "locationId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.NoContent(w, r)
}
