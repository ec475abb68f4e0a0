package precipitation

import (
	"math"
	"sync"
	"time"
)

// CooldownConfig holds configuration for the cooldown governor.
type CooldownConfig struct {
	// Window is the minimum time between two delivered alerts for one
	// location (default: 30 minutes).
	Window time.Duration

	// Clock is the time source (default: time.Now).
	Clock func() time.Time
}

// CooldownGovernor remembers when each location last received an alert.
// It is safe for concurrent use.
type CooldownGovernor struct {
	window time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

// NewCooldownGovernor creates a new cooldown governor.
func NewCooldownGovernor(cfg CooldownConfig) *CooldownGovernor {
	window := cfg.Window
	if window == 0 {
		window = 30 * time.Minute
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &CooldownGovernor{
		window:    window,
		clock:     clock,
		lastAlert: make(map[string]time.Time),
	}
}

// Allow reports whether an alert for locationID may be delivered now. When
// it may, now is recorded as the last delivery. When it may not, the time
// left in the window is returned.
func (g *CooldownGovernor) Allow(locationID string) (bool, time.Duration) {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastAlert[locationID]; ok {
		if elapsed := now.Sub(last); elapsed < g.window {
			return false, g.window - elapsed
		}
	}
	g.lastAlert[locationID] = now
	return true, 0
}

// Clear forgets locationID so its next alert is delivered.
func (g *CooldownGovernor) Clear(locationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastAlert, locationID)
}

// Status reports whether locationID is in cooldown and, if so, the whole
// minutes left, rounded up.
func (g *CooldownGovernor) Status(locationID string) CooldownStatus {
	now := g.clock()

	g.mu.Lock()
	last, ok := g.lastAlert[locationID]
	g.mu.Unlock()

	if !ok {
		return CooldownStatus{}
	}
	remaining := g.window - now.Sub(last)
	if remaining <= 0 {
		return CooldownStatus{}
	}

	minutes := int(math.Ceil(remaining.Minutes()))
	return CooldownStatus{InCooldown: true, RemainingMinutes: &minutes}
}

// Sweep removes records whose window has passed and returns how many.
func (g *CooldownGovernor) Sweep() int {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, last := range g.lastAlert {
		if now.Sub(last) >= g.window {
			delete(g.lastAlert, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked locations.
func (g *CooldownGovernor) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lastAlert)
}
