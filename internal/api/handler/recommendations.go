package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/api/models"
	"github.com/skydeck/skydeck/internal/api/response"
	"github.com/skydeck/skydeck/internal/api/validation"
	"github.com/skydeck/skydeck/internal/suitability"
	"github.com/skydeck/skydeck/internal/weather"
)

// RecommendationService produces activity recommendations for a location.
type RecommendationService interface {
	GetRecommendations(ctx context.Context, lat, lon float64, settings *suitability.Settings, units weather.Units) ([]suitability.Recommendation, error)
}

// RecommendationHandler handles activity suitability endpoints.
type RecommendationHandler struct {
	service   RecommendationService
	validator *validation.Validator
	log       zerolog.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(service RecommendationService, v *validation.Validator, log zerolog.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		service:   service,
		validator: v,
		log:       log,
	}
}

// GetRecommendations handles GET /v1/recommendations?lat&lon&units&activities=a,b.
func (h *RecommendationHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	lat, lon, fieldErrors := parseCoordinates(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	query := r.URL.Query()
	var settings *suitability.Settings
	if activities := parseActivities(query.Get("activities")); len(activities) > 0 {
		settings = &suitability.Settings{EnabledActivities: activities}
	}

	h.respond(w, r, lat, lon, query.Get("units"), settings)
}

// PostRecommendations handles POST /v1/recommendations with a JSON body
// carrying full settings, including custom thresholds.
func (h *RecommendationHandler) PostRecommendations(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErrors := h.validator.Struct(req); fieldErrors != nil {
		response.BadRequest(w, r, "request validation failed", fieldErrors)
		return
	}

	h.respond(w, r, *req.Lat, *req.Lon, req.Units, req.Settings)
}

func (h *RecommendationHandler) respond(w http.ResponseWriter, r *http.Request, lat, lon float64, rawUnits string, settings *suitability.Settings) {
	units, err := weather.ParseUnits(rawUnits)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	recs, err := h.service.GetRecommendations(r.Context(), lat, lon, settings, units)
	if err != nil {
		h.log.Debug().Err(err).Msg("recommendation request rejected")
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.RecommendationsResponse{
		Lat:             lat,
		Lon:             lon,
		Units:           string(units),
		Recommendations: recs,
	})
}
