// Package airquality converts pollutant concentrations into the US EPA air
// quality index used by the activity scorer.
package airquality

import "errors"

// ErrNoPollutants is returned when no supported pollutant was measured.
var ErrNoPollutants = errors.New("no supported pollutant concentrations")

// Pollutant represents an air quality pollutant type.
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM25"
	PollutantPM10 Pollutant = "PM10"
	PollutantO3   Pollutant = "O3"
)

// Concentrations holds surface concentrations in µg/m³. Nil means not measured.
type Concentrations struct {
	PM25 *float64
	PM10 *float64
	O3   *float64
}

// Index is a computed AQI with the pollutant that determined it.
type Index struct {
	Value    float64
	Dominant Pollutant
	Category Category
}

// Category is the EPA health category for an AQI value.
type Category string

const (
	CategoryGood               Category = "GOOD"
	CategoryModerate           Category = "MODERATE"
	CategoryUnhealthySensitive Category = "UNHEALTHY_FOR_SENSITIVE_GROUPS"
	CategoryUnhealthy          Category = "UNHEALTHY"
	CategoryVeryUnhealthy      Category = "VERY_UNHEALTHY"
	CategoryHazardous          Category = "HAZARDOUS"
)

// CategoryFor returns the EPA category for an AQI value.
func CategoryFor(aqi float64) Category {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategoryModerate
	case aqi <= 150:
		return CategoryUnhealthySensitive
	case aqi <= 200:
		return CategoryUnhealthy
	case aqi <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}
