package precipitation

import (
	"github.com/skydeck/skydeck/internal/weather"
)

const (
	// DetectionThreshold is the minimum intensity (mm per interval) that
	// counts as precipitation.
	DetectionThreshold = 0.1

	// MaxGapSamples is how many consecutive dry samples an event tolerates
	// before it is considered over.
	MaxGapSamples = 2

	lightBelow    = 0.5
	moderateBelow = 2.5
)

// Onset describes an upcoming precipitation event.
type Onset struct {
	// Index of the first qualifying sample.
	Index int

	// MinutesToStart is Index+1.
	MinutesToStart int

	// Duration in minutes, from onset to the last qualifying sample.
	Duration int

	// AverageIntensity is the total qualifying intensity over Duration.
	AverageIntensity float64

	Intensity Intensity
}

// Detect scans up to weather.MaxPrecipitationSamples samples for the first
// one at or above DetectionThreshold. It reports false when none qualifies.
func Detect(samples []weather.PrecipitationSample) (Onset, bool) {
	if len(samples) > weather.MaxPrecipitationSamples {
		samples = samples[:weather.MaxPrecipitationSamples]
	}

	onset := -1
	for i, s := range samples {
		if s.Intensity >= DetectionThreshold {
			onset = i
			break
		}
	}
	if onset < 0 {
		return Onset{}, false
	}

	var total float64
	last, gap := onset, 0
	for i := onset; i < len(samples); i++ {
		if samples[i].Intensity >= DetectionThreshold {
			total += samples[i].Intensity
			last = i
			gap = 0
			continue
		}
		gap++
		if gap > MaxGapSamples {
			break
		}
	}

	duration := last - onset + 1
	avg := total / float64(duration)

	return Onset{
		Index:            onset,
		MinutesToStart:   onset + 1,
		Duration:         duration,
		AverageIntensity: avg,
		Intensity:        classifyIntensity(avg),
	}, true
}

func classifyIntensity(avg float64) Intensity {
	switch {
	case avg < lightBelow:
		return IntensityLight
	case avg < moderateBelow:
		return IntensityModerate
	default:
		return IntensityHeavy
	}
}
