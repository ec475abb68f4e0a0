package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/cache"
	"github.com/skydeck/skydeck/internal/provider/resilience"
	"github.com/skydeck/skydeck/internal/telemetry"
)

// MaxPrecipitationSamples is the number of one-minute samples kept per fetch.
const MaxPrecipitationSamples = 15

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrentWeather fetches current conditions for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64, units Units) (*Observation, error)

	// GetHourlyForecast fetches the hourly forecast, ordered by time.
	GetHourlyForecast(ctx context.Context, lat, lon float64, units Units) ([]HourlyObservation, error)

	// GetMinutelyPrecipitation fetches minute-resolution precipitation
	// samples starting now, ordered by time.
	GetMinutelyPrecipitation(ctx context.Context, lat, lon float64) ([]PrecipitationSample, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// PrecipitationCacheTTL is how long raw minutely data is reused
	// (default: 5 minutes).
	PrecipitationCacheTTL time.Duration

	// Clock is the time source for the cache (default: time.Now).
	Clock cache.Clock

	// Registry records provider successes and failures (optional).
	Registry *resilience.Registry

	// Metrics records upstream calls and cache hits (optional).
	Metrics *telemetry.EngineMetrics
}

// Service is the fetch layer in front of the weather provider. Minutely
// precipitation is cached per rounded coordinate; current and hourly data
// are cached one layer up by the recommendation cache.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	registry *resilience.Registry
	metrics  *telemetry.EngineMetrics

	precipitation *cache.TTL[[]PrecipitationSample]
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.PrecipitationCacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		precipitation: cache.New[[]PrecipitationSample](cache.Config{
			TTL:   ttl,
			Clock: cfg.Clock,
		}),
	}
}

// GetCurrentWeather fetches current conditions from the provider.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64, units Units) (*Observation, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	start := time.Now()
	obs, err := s.provider.GetCurrentWeather(ctx, lat, lon, units)
	s.recordUpstream(ctx, "current", start, err)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("provider", s.provider.Name()).
			Msg("failed to fetch current weather")
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if obs == nil {
		return nil, ErrNoDataForLocation
	}

	return obs, nil
}

// GetHourlyForecast fetches the hourly forecast from the provider.
func (s *Service) GetHourlyForecast(ctx context.Context, lat, lon float64, units Units) ([]HourlyObservation, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	start := time.Now()
	hourly, err := s.provider.GetHourlyForecast(ctx, lat, lon, units)
	s.recordUpstream(ctx, "hourly", start, err)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("provider", s.provider.Name()).
			Msg("failed to fetch hourly forecast")
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	return hourly, nil
}

// GetMinutelyPrecipitation returns up to MaxPrecipitationSamples one-minute
// samples. Coordinates are rounded to two decimals to form the cache key.
func (s *Service) GetMinutelyPrecipitation(ctx context.Context, lat, lon float64) ([]PrecipitationSample, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	key := precipitationCacheKey(lat, lon)
	if samples, ok := s.precipitation.Get(key); ok {
		s.metrics.RecordCacheHit(ctx, "precipitation")
		return samples, nil
	}
	s.metrics.RecordCacheMiss(ctx, "precipitation")

	s.logger.Debug().
		Str("cache_key", key).
		Str("provider", s.provider.Name()).
		Msg("fetching minutely precipitation from provider")

	start := time.Now()
	samples, err := s.provider.GetMinutelyPrecipitation(ctx, RoundCoordinate(lat), RoundCoordinate(lon))
	s.recordUpstream(ctx, "minutely", start, err)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("provider", s.provider.Name()).
			Msg("failed to fetch minutely precipitation")
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	if len(samples) > MaxPrecipitationSamples {
		samples = samples[:MaxPrecipitationSamples]
	}

	s.precipitation.Set(key, samples)
	return samples, nil
}

// Sweep evicts expired precipitation cache entries.
func (s *Service) Sweep() int {
	removed := s.precipitation.Sweep()
	if removed > 0 {
		s.logger.Debug().
			Int("expired_entries", removed).
			Msg("cleaned up expired precipitation cache entries")
	}
	return removed
}

// InvalidateCache clears all cached precipitation data.
func (s *Service) InvalidateCache() {
	s.precipitation.Clear()
}

// CacheStats returns precipitation cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.precipitation.Stats()
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func (s *Service) recordUpstream(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.RecordUpstream(ctx, s.provider.Name(), operation, time.Since(start), err)
	if s.registry == nil {
		return
	}
	if err != nil {
		s.registry.RecordFailure(s.provider.Name(), err)
	} else {
		s.registry.RecordSuccess(s.provider.Name())
	}
}

func precipitationCacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f:%.2f", lat, lon)
}
