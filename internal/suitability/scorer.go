package suitability

import (
	"math"

	"github.com/skydeck/skydeck/internal/weather"
)

// Factor weights. The score renormalizes over the factors present.
var factorWeights = map[Factor]float64{
	FactorTemperature:   0.35,
	FactorWind:          0.20,
	FactorPrecipitation: 0.25,
	FactorHumidity:      0.15,
	FactorAQI:           0.05,
}

// factorOrder fixes summation order so rounding is deterministic.
var factorOrder = []Factor{FactorTemperature, FactorWind, FactorPrecipitation, FactorHumidity, FactorAQI}

// Score rates c against t. It returns the 0-100 score, its rating, and the
// per-factor ratings for the factors c has data for. ErrNoFactors is
// returned when c has none.
func Score(c Conditions, t ThresholdSet) (int, Rating, map[Factor]Rating, error) {
	factors := make(map[Factor]Rating, len(factorWeights))

	if c.Temperature != nil {
		factors[FactorTemperature] = EvaluateTemperature(*c.Temperature, t.Temperature)
	}
	if c.WindSpeed != nil {
		factors[FactorWind] = EvaluateWind(*c.WindSpeed, t.WindMax)
	}
	if c.Precipitation != nil {
		factors[FactorPrecipitation] = EvaluatePrecipitation(*c.Precipitation, t.PrecipitationMax)
	}
	if c.Humidity != nil {
		factors[FactorHumidity] = EvaluateHumidity(*c.Humidity, t.Humidity)
	}
	if c.AQI != nil {
		factors[FactorAQI] = EvaluateAQI(*c.AQI, t.AQIMax)
	}

	if len(factors) == 0 {
		return 0, "", nil, ErrNoFactors
	}

	var total, weights float64
	for _, factor := range factorOrder {
		rating, ok := factors[factor]
		if !ok {
			continue
		}
		w := factorWeights[factor]
		total += w * rating.Value()
		weights += w
	}

	score := int(math.Round(total / weights))
	return score, RatingForScore(score), factors, nil
}

// Recommend scores one activity from the current observation and picks
// its best hours from the forecast.
func Recommend(activity Activity, obs *weather.Observation, hourly []weather.HourlyObservation, t ThresholdSet) (Recommendation, error) {
	score, rating, factors, err := Score(ConditionsFromObservation(obs), t)
	if err != nil {
		return Recommendation{}, err
	}

	return Recommendation{
		Activity:  activity,
		Rating:    rating,
		Score:     score,
		BestHours: BestHours(hourly, t),
		Factors:   factors,
	}, nil
}

// ConditionsFromObservation lifts an observation into scorer input.
func ConditionsFromObservation(obs *weather.Observation) Conditions {
	if obs == nil {
		return Conditions{}
	}
	return Conditions{
		Temperature:   f(obs.Temperature),
		WindSpeed:     f(obs.WindSpeed),
		Precipitation: f(obs.Precipitation),
		Humidity:      f(obs.Humidity),
		AQI:           obs.AQI,
	}
}

// ConditionsFromHour lifts one forecast hour into scorer input.
func ConditionsFromHour(h weather.HourlyObservation) Conditions {
	return Conditions{
		Temperature:   f(h.Temperature),
		WindSpeed:     f(h.WindSpeed),
		Precipitation: f(h.Precipitation),
		Humidity:      f(h.Humidity),
		AQI:           h.AQI,
	}
}
