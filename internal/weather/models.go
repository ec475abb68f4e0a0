// Package weather provides weather data access for the dashboard engine.
package weather

import (
	"errors"
	"math"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrInvalidUnits        = errors.New("invalid units")
)

// Units selects the measurement system for observations and thresholds.
type Units string

const (
	// UnitsImperial reports °F, mph and inches.
	UnitsImperial Units = "imperial"

	// UnitsMetric reports °C, m/s and millimetres.
	UnitsMetric Units = "metric"
)

// ParseUnits validates a units string. An empty string selects imperial.
func ParseUnits(s string) (Units, error) {
	switch Units(s) {
	case "":
		return UnitsImperial, nil
	case UnitsImperial, UnitsMetric:
		return Units(s), nil
	default:
		return "", ErrInvalidUnits
	}
}

// Observation is an immutable snapshot of current conditions at a location.
type Observation struct {
	Lat float64
	Lon float64

	// Temperature in the requested units (°F or °C).
	Temperature float64

	// WindSpeed in the requested units (mph or m/s).
	WindSpeed float64

	// Precipitation over the last hour (inches or mm).
	Precipitation float64

	// Humidity percentage (0-100).
	Humidity float64

	// AQI is the US EPA air quality index, nil when no reading was available.
	AQI *float64

	Units      Units
	ObservedAt time.Time
	FetchedAt  time.Time
}

// HourlyObservation is one hour of forecast conditions.
type HourlyObservation struct {
	Time          time.Time
	Temperature   float64
	WindSpeed     float64
	Precipitation float64
	Humidity      float64
	AQI           *float64
}

// Label returns the hour label used in best-window output, e.g. "14:00".
func (h HourlyObservation) Label() string {
	return h.Time.Format("15:04")
}

// PrecipitationSample is one minute of precipitation intensity.
type PrecipitationSample struct {
	Time time.Time

	// Intensity in mm per interval.
	Intensity float64
}

// ValidateCoordinates checks that lat/lon are finite and within range.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// RoundCoordinate rounds a coordinate to two decimal places (~1.1km).
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100) / 100
}
