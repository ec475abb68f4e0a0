package worker

import (
	"time"

	"github.com/skydeck/skydeck/internal/config"
	"github.com/skydeck/skydeck/internal/precipitation"
)

// ScanConfig configures the watch-location scan.
type ScanConfig struct {
	// Locations are checked on every scan, in order.
	Locations []precipitation.Location

	// Timeout bounds a single scan (default: 60 seconds).
	Timeout time.Duration
}

// DefaultScanConfig returns a scan config with no locations.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Timeout: 60 * time.Second,
	}
}

// ScanConfigFrom builds a scan config from the configured watch locations.
func ScanConfigFrom(watch config.WatchLocations) ScanConfig {
	cfg := DefaultScanConfig()
	cfg.Locations = make([]precipitation.Location, 0, len(watch))
	for _, w := range watch {
		cfg.Locations = append(cfg.Locations, precipitation.Location{
			ID:  w.ID,
			Lat: w.Lat,
			Lon: w.Lon,
		})
	}
	return cfg
}

// TotalLocations returns the number of watch locations.
func (c ScanConfig) TotalLocations() int {
	return len(c.Locations)
}
