// Package config defines the process configuration for the API and worker.
//
// Values come from the OS environment, optionally seeded from a .env file.
// A missing required value or an invalid format fails startup.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level configuration. It is loaded once at startup and
// not modified afterwards.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Port        string `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	Weather       WeatherConfig
	Engine        EngineConfig
	Observability ObservabilityConfig
	HTTP          HTTPConfig
	Worker        WorkerConfig
}

// WeatherConfig configures the OpenWeatherMap provider.
type WeatherConfig struct {
	APIKey          string        `envconfig:"OWM_API_KEY" validate:"required"`
	BaseURL         string        `envconfig:"OWM_BASE_URL" validate:"omitempty,url"`
	OneCallURL      string        `envconfig:"OWM_ONECALL_URL" validate:"omitempty,url"`
	AirPollutionURL string        `envconfig:"OWM_AIR_POLLUTION_URL" validate:"omitempty,url"`
	Timeout         time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"5s" validate:"gt=0"`
}

// EngineConfig tunes the decision engine's caches and cooldown.
type EngineConfig struct {
	RecommendationCacheTTL time.Duration `envconfig:"RECOMMENDATION_CACHE_TTL" default:"10m" validate:"gt=0"`
	PrecipitationCacheTTL  time.Duration `envconfig:"PRECIPITATION_CACHE_TTL" default:"5m" validate:"gt=0"`
	AlertCooldown          time.Duration `envconfig:"ALERT_COOLDOWN" default:"30m" validate:"gt=0"`
	SweepSchedule          string        `envconfig:"SWEEP_SCHEDULE" default:"@every 60s" validate:"required"`
	BatchConcurrency       int           `envconfig:"BATCH_CONCURRENCY" default:"8" validate:"min=1,max=64"`
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

// HTTPConfig configures the public HTTP surface.
type HTTPConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// WorkerConfig configures the background worker.
type WorkerConfig struct {
	PubSubProjectID    string         `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubSubscription string         `envconfig:"PUBSUB_SUBSCRIPTION" default:"skydeck-jobs"`
	AlertTopic         string         `envconfig:"PUBSUB_ALERT_TOPIC" default:"skydeck-alerts"`
	WatchLocations     WatchLocations `envconfig:"WATCH_LOCATIONS"`
	WatchSchedule      string         `envconfig:"WATCH_SCHEDULE" default:"@every 5m" validate:"required"`
}

// WatchLocation is a location the worker scans on a schedule.
type WatchLocation struct {
	ID  string
	Lat float64
	Lon float64
}

// WatchLocations decodes "id:lat:lon,id:lat:lon".
type WatchLocations []WatchLocation

// Decode implements envconfig.Decoder.
func (w *WatchLocations) Decode(value string) error {
	var out WatchLocations
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" {
			return fmt.Errorf("watch location %q: want id:lat:lon", entry)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return fmt.Errorf("watch location %q: latitude: %w", entry, err)
		}
		lon, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return fmt.Errorf("watch location %q: longitude: %w", entry, err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return fmt.Errorf("watch location %q: coordinates out of range", entry)
		}

		out = append(out, WatchLocation{ID: parts[0], Lat: lat, Lon: lon})
	}
	*w = out
	return nil
}

// IsProduction reports whether the process runs in prod.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}
