// Package suitability rates outdoor activities against current and
// forecast weather.
package suitability

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Suitability errors.
var (
	// ErrNoFactors is returned when no factor has input data, so no score
	// can be computed.
	ErrNoFactors = errors.New("no factors available to score")

	// ErrUnknownActivity is returned for activity names outside the fixed set.
	ErrUnknownActivity = errors.New("unknown activity")

	// ErrInvalidSettings is returned when caller settings are malformed.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Activity is a discretionary outdoor activity.
type Activity string

const (
	ActivityRunning     Activity = "running"
	ActivityCycling     Activity = "cycling"
	ActivityGardening   Activity = "gardening"
	ActivityOutdoorWork Activity = "outdoor_work"
	ActivityStargazing  Activity = "stargazing"
)

// AllActivities returns every supported activity in declaration order.
func AllActivities() []Activity {
	return []Activity{
		ActivityRunning,
		ActivityCycling,
		ActivityGardening,
		ActivityOutdoorWork,
		ActivityStargazing,
	}
}

func activityRank(a Activity) int {
	for i, known := range AllActivities() {
		if known == a {
			return i
		}
	}
	return len(AllActivities())
}

// ParseActivity validates an activity name.
func ParseActivity(s string) (Activity, error) {
	a := Activity(s)
	if _, ok := defaultThresholds[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownActivity, s)
	}
	return a, nil
}

// Rating is the good/fair/poor category of a factor or a whole score.
type Rating string

const (
	RatingGood Rating = "good"
	RatingFair Rating = "fair"
	RatingPoor Rating = "poor"
)

// Value converts a rating to its numeric weight in the score.
func (r Rating) Value() float64 {
	switch r {
	case RatingGood:
		return 100
	case RatingFair:
		return 50
	default:
		return 0
	}
}

// RatingForScore maps a 0-100 score onto a rating.
func RatingForScore(score int) Rating {
	switch {
	case score >= 70:
		return RatingGood
	case score >= 40:
		return RatingFair
	default:
		return RatingPoor
	}
}

// Factor names one weather dimension.
type Factor string

const (
	FactorTemperature   Factor = "temperature"
	FactorWind          Factor = "wind"
	FactorPrecipitation Factor = "precipitation"
	FactorHumidity      Factor = "humidity"
	FactorAQI           Factor = "aqi"
)

// Conditions are the inputs to the scorer. A nil field means no data for
// that factor; it is left out of the score and the factors map.
type Conditions struct {
	Temperature   *float64
	WindSpeed     *float64
	Precipitation *float64
	Humidity      *float64
	AQI           *float64
}

// Range is an inclusive bound with an optional optimal point.
type Range struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Optimal *float64 `json:"optimal,omitempty"`
}

// ThresholdSet holds the per-factor bounds for one activity. A nil bound
// rates its factor fair.
type ThresholdSet struct {
	Temperature      *Range   `json:"temperature,omitempty"`
	WindMax          *float64 `json:"windMax,omitempty"`
	PrecipitationMax *float64 `json:"precipitationMax,omitempty"`
	Humidity         *Range   `json:"humidity,omitempty"`
	AQIMax           *float64 `json:"aqiMax,omitempty"`
}

// Validate checks that every range is ordered and every limit is finite
// and non-negative where it has to be.
func (t ThresholdSet) Validate() error {
	for name, r := range map[string]*Range{"temperature": t.Temperature, "humidity": t.Humidity} {
		if r == nil {
			continue
		}
		if !finite(r.Min) || !finite(r.Max) || r.Min > r.Max {
			return fmt.Errorf("%s range [%v, %v] is not ordered", name, r.Min, r.Max)
		}
		if r.Optimal != nil && (*r.Optimal < r.Min || *r.Optimal > r.Max) {
			return fmt.Errorf("%s optimal %v outside [%v, %v]", name, *r.Optimal, r.Min, r.Max)
		}
	}
	for name, v := range map[string]*float64{"windMax": t.WindMax, "precipitationMax": t.PrecipitationMax, "aqiMax": t.AQIMax} {
		if v != nil && (!finite(*v) || *v < 0) {
			return fmt.Errorf("%s must be a non-negative number", name)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Settings are the caller's preferences for a recommendation request.
type Settings struct {
	// EnabledActivities limits the result; empty means all activities.
	EnabledActivities []Activity `json:"enabledActivities,omitempty"`

	// CustomThresholds fully replace the default set for an activity.
	CustomThresholds map[Activity]ThresholdSet `json:"customThresholds,omitempty"`
}

// Normalize validates activity names and thresholds and returns a copy with
// a de-duplicated activity list in AllActivities order, suitable for use in
// a cache key.
func (s *Settings) Normalize() (Settings, error) {
	if s == nil {
		return Settings{}, nil
	}

	seen := make(map[Activity]bool, len(s.EnabledActivities))
	activities := make([]Activity, 0, len(s.EnabledActivities))
	for _, a := range s.EnabledActivities {
		if _, err := ParseActivity(string(a)); err != nil {
			return Settings{}, err
		}
		if !seen[a] {
			seen[a] = true
			activities = append(activities, a)
		}
	}
	sort.Slice(activities, func(i, j int) bool { return activityRank(activities[i]) < activityRank(activities[j]) })

	for a, ts := range s.CustomThresholds {
		if _, err := ParseActivity(string(a)); err != nil {
			return Settings{}, err
		}
		if err := ts.Validate(); err != nil {
			return Settings{}, fmt.Errorf("%w: %s: %w", ErrInvalidSettings, a, err)
		}
	}

	out := Settings{CustomThresholds: s.CustomThresholds}
	if len(activities) > 0 {
		out.EnabledActivities = activities
	}
	return out, nil
}

// Activities returns the activities to score: the enabled list, or all.
func (s Settings) Activities() []Activity {
	if len(s.EnabledActivities) == 0 {
		return AllActivities()
	}
	return s.EnabledActivities
}

// Recommendation is the scored result for one activity.
type Recommendation struct {
	Activity  Activity          `json:"activity"`
	Rating    Rating            `json:"rating"`
	Score     int               `json:"score"`
	BestHours []string          `json:"bestHours"`
	Factors   map[Factor]Rating `json:"factors"`
}
