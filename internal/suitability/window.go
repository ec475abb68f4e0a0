package suitability

import (
	"sort"

	"github.com/skydeck/skydeck/internal/weather"
)

// MaxBestHours caps the best-hour labels per recommendation.
const MaxBestHours = 3

// BestHours returns up to MaxBestHours labels of hours scoring good,
// highest score first. Equal scores keep chronological order. Hours with no
// scorable factor are skipped.
func BestHours(hourly []weather.HourlyObservation, t ThresholdSet) []string {
	type scoredHour struct {
		label string
		score int
	}

	kept := make([]scoredHour, 0, len(hourly))
	for _, h := range hourly {
		score, _, _, err := Score(ConditionsFromHour(h), t)
		if err != nil || score < 70 {
			continue
		}
		kept = append(kept, scoredHour{label: h.Label(), score: score})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	if len(kept) > MaxBestHours {
		kept = kept[:MaxBestHours]
	}

	labels := make([]string, len(kept))
	for i, h := range kept {
		labels[i] = h.label
	}
	return labels
}
