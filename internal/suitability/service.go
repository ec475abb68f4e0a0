package suitability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/skydeck/skydeck/internal/cache"
	"github.com/skydeck/skydeck/internal/telemetry"
	"github.com/skydeck/skydeck/internal/weather"
)

// WeatherSource supplies the current and hourly data scored here.
type WeatherSource interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64, units weather.Units) (*weather.Observation, error)
	GetHourlyForecast(ctx context.Context, lat, lon float64, units weather.Units) ([]weather.HourlyObservation, error)
}

// ServiceConfig holds configuration for the recommendation service.
type ServiceConfig struct {
	// Weather is the upstream data source.
	Weather WeatherSource

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a recommendation set is served (default: 10 minutes).
	CacheTTL time.Duration

	// Clock is the cache time source (default: time.Now).
	Clock cache.Clock

	// Metrics records cache hits and misses (optional).
	Metrics *telemetry.EngineMetrics
}

// Service produces cached, score-ordered activity recommendations.
type Service struct {
	weather WeatherSource
	logger  zerolog.Logger
	metrics *telemetry.EngineMetrics
	cache   *cache.TTL[[]Recommendation]
}

// NewService creates a new recommendation service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	return &Service{
		weather: cfg.Weather,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		cache: cache.New[[]Recommendation](cache.Config{
			TTL:   ttl,
			Clock: cfg.Clock,
		}),
	}
}

// GetRecommendations returns one recommendation per enabled activity,
// sorted by score descending. Only invalid input is reported as an error;
// upstream failures yield an empty list, which is not cached.
func (s *Service) GetRecommendations(ctx context.Context, lat, lon float64, settings *Settings, units weather.Units) ([]Recommendation, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	units, err := weather.ParseUnits(string(units))
	if err != nil {
		return nil, err
	}
	normalized, err := settings.Normalize()
	if err != nil {
		return nil, err
	}

	key, err := cacheKey(lat, lon, units, normalized)
	if err != nil {
		return nil, err
	}

	if recs, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheHit(ctx, "recommendations")
		return recs, nil
	}
	s.metrics.RecordCacheMiss(ctx, "recommendations")

	var (
		obs    *weather.Observation
		hourly []weather.HourlyObservation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		obs, err = s.weather.GetCurrentWeather(gctx, lat, lon, units)
		return err
	})
	g.Go(func() error {
		var err error
		hourly, err = s.weather.GetHourlyForecast(gctx, lat, lon, units)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("weather unavailable, returning no recommendations")
		return []Recommendation{}, nil
	}

	recs := make([]Recommendation, 0, len(normalized.Activities()))
	for _, activity := range normalized.Activities() {
		thresholds, err := ThresholdsFor(activity, normalized, units)
		if err != nil {
			return nil, err
		}

		rec, err := Recommend(activity, obs, hourly, thresholds)
		if errors.Is(err, ErrNoFactors) {
			s.logger.Warn().
				Str("activity", string(activity)).
				Float64("lat", lat).
				Float64("lon", lon).
				Msg("no weather factors to score, returning no recommendations")
			return []Recommendation{}, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })

	s.cache.Set(key, recs)
	return recs, nil
}

// Sweep evicts expired recommendation sets.
func (s *Service) Sweep() int {
	removed := s.cache.Sweep()
	if removed > 0 {
		s.logger.Debug().
			Int("expired_entries", removed).
			Msg("cleaned up expired recommendation cache entries")
	}
	return removed
}

// InvalidateCache clears every cached recommendation set.
func (s *Service) InvalidateCache() {
	s.cache.Clear()
}

// CacheStats returns recommendation cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func cacheKey(lat, lon float64, units weather.Units, settings Settings) (string, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return fmt.Sprintf("%.4f:%.4f:%s:%s", lat, lon, units, raw), nil
}
