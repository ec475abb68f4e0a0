package models

import "github.com/skydeck/skydeck/internal/precipitation"

// BatchLocation is one entry of a batch precipitation check.
type BatchLocation struct {
	ID  string   `json:"id" validate:"required,max=128"`
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// PrecipitationBatchRequest is the body of POST /v1/precipitation/batch.
type PrecipitationBatchRequest struct {
	Locations []BatchLocation `json:"locations" validate:"required,min=1,max=100,dive"`
}

// PrecipitationResponse wraps the result of a single-location check.
// Alert is null when nothing is imminent, when the location is in
// cooldown, or when upstream data was unavailable.
type PrecipitationResponse struct {
	Alert *precipitation.Alert `json:"alert"`
}

// PrecipitationBatchResponse lists the alerts issued by a batch check in
// request order.
type PrecipitationBatchResponse struct {
	Alerts []precipitation.Alert `json:"alerts"`
}

// CooldownResponse reports the cooldown state of one location.
type CooldownResponse struct {
	LocationID string `json:"locationId"`
	precipitation.CooldownStatus
}
