package models

import "github.com/skydeck/skydeck/internal/suitability"

// RecommendationsRequest is the body of POST /v1/recommendations.
type RecommendationsRequest struct {
	Lat      *float64              `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon      *float64              `json:"lon" validate:"required,gte=-180,lte=180"`
	Units    string                `json:"units,omitempty" validate:"omitempty,oneof=imperial metric"`
	Settings *suitability.Settings `json:"settings,omitempty"`
}

// RecommendationsResponse lists activity recommendations for one location,
// best score first.
type RecommendationsResponse struct {
	Lat             float64                      `json:"lat"`
	Lon             float64                      `json:"lon"`
	Units           string                       `json:"units"`
	Recommendations []suitability.Recommendation `json:"recommendations"`
}
