// Package precipitation detects imminent precipitation from minute-level
// forecasts and rate-limits the resulting alerts per location.
package precipitation

import (
	"errors"
	"time"
)

// Precipitation errors.
var (
	ErrInvalidLocationID = errors.New("invalid location id")
)

// Type is the precipitation type reported on an alert.
type Type string

// Only TypeRain is produced today; there is no temperature-based
// classification into snow or sleet.
const (
	TypeRain  Type = "rain"
	TypeSnow  Type = "snow"
	TypeSleet Type = "sleet"
)

// Intensity is the bucketed average intensity of an event.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityHeavy    Intensity = "heavy"
)

// Location is one place to check in a batch.
type Location struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Alert announces precipitation starting within the sampled window.
type Alert struct {
	ID                string    `json:"id"`
	LocationID        string    `json:"locationId"`
	Lat               float64   `json:"lat"`
	Lon               float64   `json:"lon"`
	MinutesToStart    int       `json:"minutesToStart"`
	Type              Type      `json:"type"`
	Intensity         Intensity `json:"intensity"`
	EstimatedDuration int       `json:"estimatedDuration"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// CooldownStatus reports whether alerts for a location are suppressed.
type CooldownStatus struct {
	InCooldown       bool `json:"inCooldown"`
	RemainingMinutes *int `json:"remainingMinutes,omitempty"`
}
