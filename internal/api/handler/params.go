package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/skydeck/skydeck/internal/api/models"
	"github.com/skydeck/skydeck/internal/api/response"
	"github.com/skydeck/skydeck/internal/precipitation"
	"github.com/skydeck/skydeck/internal/suitability"
	"github.com/skydeck/skydeck/internal/weather"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// parseCoordinates reads the required lat and lon query parameters.
// Range checks are left to the services.
func parseCoordinates(r *http.Request) (lat, lon float64, fieldErrors []models.FieldError) {
	lat, fe := parseFloatParam(r, "lat")
	if fe != nil {
		fieldErrors = append(fieldErrors, *fe)
	}
	lon, fe = parseFloatParam(r, "lon")
	if fe != nil {
		fieldErrors = append(fieldErrors, *fe)
	}
	return lat, lon, fieldErrors
}

func parseFloatParam(r *http.Request, name string) (float64, *models.FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, &models.FieldError{Field: name, Message: "is required", Code: "REQUIRED"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.FieldError{Field: name, Message: "must be a number", Code: "INVALID_FORMAT"}
	}
	return v, nil
}

// parseActivities splits a comma-separated activity list. Names are checked
// by the recommendation service.
func parseActivities(raw string) []suitability.Activity {
	if raw == "" {
		return nil
	}
	var out []suitability.Activity
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, suitability.Activity(name))
		}
	}
	return out
}

// decodeJSON decodes a bounded JSON body into dst, writing a 400 problem and
// returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			response.BadRequest(w, r, "request body too large", nil)
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, "request body is empty", nil)
		default:
			response.BadRequest(w, r, "invalid JSON body", nil)
		}
		return false
	}
	return true
}

// writeServiceError maps engine errors onto problem responses. Invalid input
// becomes a 400 naming the offending field; anything else is a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "lat", Message: "must be between -90 and 90", Code: "OUT_OF_RANGE"},
			{Field: "lon", Message: "must be between -180 and 180", Code: "OUT_OF_RANGE"},
		})
	case errors.Is(err, weather.ErrInvalidUnits):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "units", Message: "must be one of: imperial metric", Code: "INVALID_VALUE"},
		})
	case errors.Is(err, suitability.ErrUnknownActivity), errors.Is(err, suitability.ErrInvalidSettings):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "settings", Message: err.Error(), Code: "INVALID_VALUE"},
		})
	case errors.Is(err, precipitation.ErrInvalidLocationID):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "locationId", Message: "must be 1-128 non-blank characters", Code: "INVALID_VALUE"},
		})
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
