package suitability

import (
	"github.com/skydeck/skydeck/internal/weather"
)

const (
	mpsPerMph = 0.44704
	mmPerInch = 25.4
)

func f(v float64) *float64 { return &v }

// defaultThresholds are authored in imperial units (°F, mph, inches).
var defaultThresholds = map[Activity]ThresholdSet{
	ActivityRunning: {
		Temperature:      &Range{Min: 40, Max: 85, Optimal: f(60)},
		WindMax:          f(15),
		PrecipitationMax: f(0.1),
		Humidity:         &Range{Min: 30, Max: 70},
		AQIMax:           f(100),
	},
	ActivityCycling: {
		Temperature:      &Range{Min: 45, Max: 90, Optimal: f(68)},
		WindMax:          f(20),
		PrecipitationMax: f(0.05),
		Humidity:         &Range{Min: 30, Max: 80},
		AQIMax:           f(100),
	},
	ActivityGardening: {
		Temperature:      &Range{Min: 50, Max: 90, Optimal: f(72)},
		WindMax:          f(20),
		PrecipitationMax: f(0.2),
		Humidity:         &Range{Min: 30, Max: 80},
		AQIMax:           f(150),
	},
	ActivityOutdoorWork: {
		Temperature:      &Range{Min: 40, Max: 95, Optimal: f(70)},
		WindMax:          f(25),
		PrecipitationMax: f(0.2),
		Humidity:         &Range{Min: 20, Max: 85},
		AQIMax:           f(150),
	},
	ActivityStargazing: {
		Temperature:      &Range{Min: 30, Max: 85, Optimal: f(60)},
		WindMax:          f(10),
		PrecipitationMax: f(0.01),
		Humidity:         &Range{Min: 0, Max: 70},
		AQIMax:           f(100),
	},
}

// DefaultThresholds returns the default set for activity expressed in units.
func DefaultThresholds(activity Activity, units weather.Units) (ThresholdSet, error) {
	base, ok := defaultThresholds[activity]
	if !ok {
		return ThresholdSet{}, ErrUnknownActivity
	}
	if units != weather.UnitsMetric {
		return base, nil
	}
	return toMetric(base), nil
}

// ThresholdsFor resolves the set used for activity: the caller's custom set
// when present, otherwise the default. Custom sets are taken as given, in
// the request's units.
func ThresholdsFor(activity Activity, settings Settings, units weather.Units) (ThresholdSet, error) {
	if custom, ok := settings.CustomThresholds[activity]; ok {
		return custom, nil
	}
	return DefaultThresholds(activity, units)
}

func toMetric(t ThresholdSet) ThresholdSet {
	out := ThresholdSet{Humidity: t.Humidity, AQIMax: t.AQIMax}

	if t.Temperature != nil {
		r := Range{
			Min: fahrenheitToCelsius(t.Temperature.Min),
			Max: fahrenheitToCelsius(t.Temperature.Max),
		}
		if t.Temperature.Optimal != nil {
			r.Optimal = f(fahrenheitToCelsius(*t.Temperature.Optimal))
		}
		out.Temperature = &r
	}
	if t.WindMax != nil {
		out.WindMax = f(*t.WindMax * mpsPerMph)
	}
	if t.PrecipitationMax != nil {
		out.PrecipitationMax = f(*t.PrecipitationMax * mmPerInch)
	}
	return out
}

func fahrenheitToCelsius(v float64) float64 {
	return (v - 32) * 5 / 9
}
