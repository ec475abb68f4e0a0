package suitability

import "math"

// EvaluateTemperature rates temp against r by its distance from the
// optimal point, scaled by the wider side of the range. Without an
// explicit optimal the midpoint is used.
func EvaluateTemperature(temp float64, r *Range) Rating {
	if r == nil {
		return RatingFair
	}
	if temp < r.Min || temp > r.Max {
		return RatingPoor
	}

	optimal := (r.Min + r.Max) / 2
	if r.Optimal != nil {
		optimal = *r.Optimal
	}

	span := math.Max(optimal-r.Min, r.Max-optimal)
	if span <= 0 {
		return RatingGood
	}
	return ratingForCloseness(1 - math.Abs(temp-optimal)/span)
}

// EvaluateWind rates wind speed against a maximum.
func EvaluateWind(speed float64, limit *float64) Rating {
	switch {
	case limit == nil:
		return RatingFair
	case speed > *limit:
		return RatingPoor
	case speed < *limit*0.5:
		return RatingGood
	default:
		return RatingFair
	}
}

// EvaluatePrecipitation rates a precipitation amount against a maximum.
func EvaluatePrecipitation(amount float64, limit *float64) Rating {
	switch {
	case limit == nil:
		return RatingFair
	case amount > *limit:
		return RatingPoor
	case amount < *limit*0.3:
		return RatingGood
	default:
		return RatingFair
	}
}

// EvaluateHumidity rates humidity by its deviation from the middle of r.
func EvaluateHumidity(humidity float64, r *Range) Rating {
	if r == nil {
		return RatingFair
	}
	if humidity < r.Min || humidity > r.Max {
		return RatingPoor
	}

	mid := (r.Min + r.Max) / 2
	half := (r.Max - r.Min) / 2
	if half <= 0 {
		return RatingGood
	}
	return ratingForCloseness(1 - math.Abs(humidity-mid)/half)
}

// EvaluateAQI rates an air quality index against a maximum.
func EvaluateAQI(aqi float64, limit *float64) Rating {
	switch {
	case limit == nil:
		return RatingFair
	case aqi > *limit:
		return RatingPoor
	case aqi <= 50:
		return RatingGood
	case aqi <= *limit*0.7:
		return RatingFair
	default:
		return RatingPoor
	}
}

func ratingForCloseness(score float64) Rating {
	switch {
	case score > 0.7:
		return RatingGood
	case score > 0.3:
		return RatingFair
	default:
		return RatingPoor
	}
}
