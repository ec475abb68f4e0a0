// Package handler provides HTTP handlers for the Skydeck API.
package handler

import (
	"net/http"
	"time"

	"github.com/skydeck/skydeck/internal/api/models"
	"github.com/skydeck/skydeck/internal/api/response"
	"github.com/skydeck/skydeck/internal/cache"
	"github.com/skydeck/skydeck/internal/provider/resilience"
)

// ProviderHealthSource reports upstream provider health.
type ProviderHealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// CacheStatsSource reports the size of an in-memory cache.
type CacheStatsSource interface {
	CacheStats() cache.Stats
}

// CooldownCounter reports how many locations hold a cooldown record.
type CooldownCounter interface {
	CooldownCount() int
}

// OpsConfig holds the dependencies of OpsHandler. Nil sources are omitted
// from the status report.
type OpsConfig struct {
	Version   string
	BuildTime string

	Providers          ProviderHealthSource
	Recommendations    CacheStatsSource
	PrecipitationFetch CacheStatsSource
	Cooldowns          CooldownCounter

	// Clock is the time source (default: time.Now).
	Clock func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Clock()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The API is not ready while every
// registered provider has an open circuit, since no request could be served
// with fresh data.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Providers != nil {
		providers := h.cfg.Providers.GetAllHealth()
		open := 0
		for _, p := range providers {
			if p.IsUnhealthy() {
				open++
			}
		}
		if len(providers) > 0 && open == len(providers) {
			response.ServiceUnavailable(w, r, "all weather providers are unavailable")
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Clock()),
	})
}

// SystemStatus handles GET /v1/ops/status - provider circuit state plus
// cache and cooldown sizes.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.cfg.Clock()),
		Subsystems: h.subsystems(),
		Providers:  []models.ProviderStatus{},
	}

	if h.cfg.Providers != nil {
		for _, p := range h.cfg.Providers.GetAllHealth() {
			ps := providerStatus(p)
			if ps.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems() []models.SubsystemStatus {
	var out []models.SubsystemStatus
	if h.cfg.Recommendations != nil {
		stats := h.cfg.Recommendations.CacheStats()
		out = append(out, models.SubsystemStatus{Name: "recommendation-cache", Status: models.HealthStatusOK, Cache: &stats})
	}
	if h.cfg.PrecipitationFetch != nil {
		stats := h.cfg.PrecipitationFetch.CacheStats()
		out = append(out, models.SubsystemStatus{Name: "precipitation-cache", Status: models.HealthStatusOK, Cache: &stats})
	}
	if h.cfg.Cooldowns != nil {
		count := h.cfg.Cooldowns.CooldownCount()
		out = append(out, models.SubsystemStatus{Name: "alert-cooldowns", Status: models.HealthStatusOK, Count: &count})
	}
	if out == nil {
		out = []models.SubsystemStatus{}
	}
	return out
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     p.Name,
		Status:       models.HealthStatusOK,
		CircuitState: p.State,
	}
	switch {
	case p.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case p.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}

	if p.LastSuccessAt != nil {
		ts := models.Timestamp(*p.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if p.LastFailureAt != nil {
		ts := models.Timestamp(*p.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}
