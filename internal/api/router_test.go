package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skydeck/skydeck/internal/api"
	"github.com/skydeck/skydeck/internal/api/handler"
	"github.com/skydeck/skydeck/internal/api/models"
	"github.com/skydeck/skydeck/internal/cache"
	"github.com/skydeck/skydeck/internal/precipitation"
	"github.com/skydeck/skydeck/internal/provider/resilience"
	"github.com/skydeck/skydeck/internal/suitability"
	"github.com/skydeck/skydeck/internal/weather"
)

// mockRecommendations records the last call and returns canned results.
type mockRecommendations struct {
	mu           sync.Mutex
	calls        int
	lastLat      float64
	lastLon      float64
	lastSettings *suitability.Settings
	lastUnits    weather.Units
	recs         []suitability.Recommendation
	err          error
}

func (m *mockRecommendations) GetRecommendations(_ context.Context, lat, lon float64, settings *suitability.Settings, units weather.Units) ([]suitability.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastLat, m.lastLon = lat, lon
	m.lastSettings = settings
	m.lastUnits = units
	if m.err != nil {
		return nil, m.err
	}
	return m.recs, nil
}

// mockPrecipitation returns an alert for any location id starting with "rain".
type mockPrecipitation struct {
	mu        sync.Mutex
	cleared   []string
	cooldowns map[string]int
	batch     []precipitation.Location
}

func newMockPrecipitation() *mockPrecipitation {
	return &mockPrecipitation{cooldowns: make(map[string]int)}
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return precipitation.ErrInvalidLocationID
	}
	return nil
}

func (m *mockPrecipitation) CheckPrecipitation(_ context.Context, lat, lon float64, locationID string) (*precipitation.Alert, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if err := validID(locationID); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(locationID, "rain") {
		return nil, nil
	}
	return &precipitation.Alert{
		ID:                "alert-1",
		LocationID:        locationID,
		Lat:               weather.RoundCoordinate(lat),
		Lon:               weather.RoundCoordinate(lon),
		MinutesToStart:    3,
		Type:              precipitation.TypeRain,
		Intensity:         precipitation.IntensityLight,
		EstimatedDuration: 5,
		GeneratedAt:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockPrecipitation) CheckMultipleLocations(ctx context.Context, locations []precipitation.Location) []precipitation.Alert {
	m.mu.Lock()
	m.batch = locations
	m.mu.Unlock()

	alerts := []precipitation.Alert{}
	for _, loc := range locations {
		if a, err := m.CheckPrecipitation(ctx, loc.Lat, loc.Lon, loc.ID); err == nil && a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts
}

func (m *mockPrecipitation) ClearCooldown(locationID string) error {
	if err := validID(locationID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, locationID)
	delete(m.cooldowns, locationID)
	return nil
}

func (m *mockPrecipitation) GetCooldownStatus(locationID string) (precipitation.CooldownStatus, error) {
	if err := validID(locationID); err != nil {
		return precipitation.CooldownStatus{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining, ok := m.cooldowns[locationID]
	if !ok {
		return precipitation.CooldownStatus{}, nil
	}
	return precipitation.CooldownStatus{InCooldown: true, RemainingMinutes: &remaining}, nil
}

func (m *mockPrecipitation) CooldownCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cooldowns)
}

type fakeProviders []*resilience.ProviderHealth

func (f fakeProviders) GetAllHealth() []*resilience.ProviderHealth { return f }

type fakeCache cache.Stats

func (f fakeCache) CacheStats() cache.Stats { return cache.Stats(f) }

type testServer struct {
	handler http.Handler
	recs    *mockRecommendations
	precip  *mockPrecipitation
}

func newTestServer(t *testing.T, providers fakeProviders) *testServer {
	t.Helper()
	recs := &mockRecommendations{
		recs: []suitability.Recommendation{
			{
				Activity:  suitability.ActivityRunning,
				Rating:    suitability.RatingGood,
				Score:     88,
				BestHours: []string{"09:00"},
				Factors:   map[suitability.Factor]suitability.Rating{suitability.FactorTemperature: suitability.RatingGood},
			},
		},
	}
	precip := newMockPrecipitation()

	router := api.NewRouter(api.RouterConfig{
		Logger:          zerolog.Nop(),
		Recommendations: recs,
		Precipitation:   precip,
		Ops: handler.OpsConfig{
			Version:            "1.2.3",
			BuildTime:          "2024-06-01T00:00:00Z",
			Providers:          providers,
			Recommendations:    fakeCache{Entries: 4, FreshEntries: 3},
			PrecipitationFetch: fakeCache{Entries: 2, FreshEntries: 2},
			Cooldowns:          precip,
			Clock:              func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		},
		AllowedOrigins: []string{"https://dashboard.example"},
	})

	return &testServer{handler: router, recs: recs, precip: precip}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func problemFields(p models.Problem) []string {
	fields := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestOps_Health(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/v1/ops/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	health := decode[map[string]any](t, rec)
	assert.Equal(t, "OK", health["status"])
	assert.Equal(t, "2024-06-01T12:00:00Z", health["time"])
	assert.Equal(t, "1.2.3", health["details"].(map[string]any)["version"])
}

func TestOps_Status(t *testing.T) {
	failedAt := time.Date(2024, 6, 1, 11, 59, 0, 0, time.UTC)
	s := newTestServer(t, fakeProviders{
		{
			Name:          "openweathermap",
			CircuitState:  gobreaker.StateOpen,
			State:         gobreaker.StateOpen.String(),
			LastFailureAt: &failedAt,
			LastError:     "unexpected status code: 503",
		},
	})
	s.precip.cooldowns["home"] = 12

	rec := s.do(http.MethodGet, "/v1/ops/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusDegraded, status.Status)

	require.Len(t, status.Providers, 1)
	p := status.Providers[0]
	assert.Equal(t, "openweathermap", p.Provider)
	assert.Equal(t, models.HealthStatusFail, p.Status)
	assert.Equal(t, "open", p.CircuitState)
	require.NotNil(t, p.LastFailureAt)
	assert.True(t, failedAt.Equal(p.LastFailureAt.Time()))
	require.NotNil(t, p.Message)
	assert.Equal(t, "unexpected status code: 503", *p.Message)

	require.Len(t, status.Subsystems, 3)
	assert.Equal(t, "recommendation-cache", status.Subsystems[0].Name)
	assert.Equal(t, 4, status.Subsystems[0].Cache.Entries)
	assert.Equal(t, "precipitation-cache", status.Subsystems[1].Name)
	assert.Equal(t, "alert-cooldowns", status.Subsystems[2].Name)
	assert.Equal(t, 1, *status.Subsystems[2].Count)
}

func TestOps_Ready(t *testing.T) {
	healthy := newTestServer(t, fakeProviders{{Name: "openweathermap", CircuitState: gobreaker.StateClosed}})
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/v1/ops/ready", "").Code)

	open := newTestServer(t, fakeProviders{{Name: "openweathermap", CircuitState: gobreaker.StateOpen}})
	rec := open.do(http.MethodGet, "/v1/ops/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRecommendations_Get(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/v1/recommendations?lat=40.7128&lon=-74.006&units=metric&activities=running,%20cycling", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.RecommendationsResponse](t, rec)
	assert.Equal(t, 40.7128, resp.Lat)
	assert.Equal(t, -74.006, resp.Lon)
	assert.Equal(t, "metric", resp.Units)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, suitability.ActivityRunning, resp.Recommendations[0].Activity)
	assert.Equal(t, 88, resp.Recommendations[0].Score)

	assert.Equal(t, weather.UnitsMetric, s.recs.lastUnits)
	require.NotNil(t, s.recs.lastSettings)
	assert.Equal(t, []suitability.Activity{suitability.ActivityRunning, suitability.ActivityCycling}, s.recs.lastSettings.EnabledActivities)
}

func TestRecommendations_GetDefaults(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/v1/recommendations?lat=0&lon=0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "imperial", decode[models.RecommendationsResponse](t, rec).Units)
	assert.Equal(t, weather.UnitsImperial, s.recs.lastUnits)
	assert.Nil(t, s.recs.lastSettings)
}

func TestRecommendations_GetEmptyListIsNotAnError(t *testing.T) {
	s := newTestServer(t, nil)
	s.recs.recs = []suitability.Recommendation{}

	rec := s.do(http.MethodGet, "/v1/recommendations?lat=10&lon=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, rec)["recommendations"]))
}

func TestRecommendations_GetInvalid(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		serviceErr error
		wantFields []string
		wantCalls  int
	}{
		{
			name:       "missing coordinates",
			query:      "",
			wantFields: []string{"lat", "lon"},
		},
		{
			name:       "non-numeric latitude",
			query:      "lat=north&lon=1",
			wantFields: []string{"lat"},
		},
		{
			name:       "unknown units",
			query:      "lat=1&lon=1&units=kelvin",
			wantFields: []string{"units"},
		},
		{
			name:       "coordinates out of range",
			query:      "lat=95&lon=1",
			serviceErr: fmt.Errorf("%w: lat=95", weather.ErrInvalidCoordinates),
			wantFields: []string{"lat", "lon"},
			wantCalls:  1,
		},
		{
			name:       "unknown activity",
			query:      "lat=1&lon=1&activities=skydiving",
			serviceErr: fmt.Errorf("%w: %q", suitability.ErrUnknownActivity, "skydiving"),
			wantFields: []string{"settings"},
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.recs.err = tt.serviceErr

			rec := s.do(http.MethodGet, "/v1/recommendations?"+tt.query, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			problem := decode[models.Problem](t, rec)
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.Equal(t, "/v1/recommendations", problem.Instance)
			assert.Equal(t, tt.wantFields, problemFields(problem))
			assert.Equal(t, tt.wantCalls, s.recs.calls)
		})
	}
}

func TestRecommendations_GetUnexpectedError(t *testing.T) {
	s := newTestServer(t, nil)
	s.recs.err = fmt.Errorf("building cache key: boom")

	rec := s.do(http.MethodGet, "/v1/recommendations?lat=1&lon=1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, models.ProblemTypeInternal, decode[models.Problem](t, rec).Type)
}

func TestRecommendations_Post(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{
		"lat": 51.5,
		"lon": -0.12,
		"units": "metric",
		"settings": {
			"enabledActivities": ["gardening"],
			"customThresholds": {
				"gardening": {"temperature": {"min": 5, "max": 30, "optimal": 20}, "windMax": 8}
			}
		}
	}`

	rec := s.do(http.MethodPost, "/v1/recommendations", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, s.recs.lastSettings)
	assert.Equal(t, []suitability.Activity{suitability.ActivityGardening}, s.recs.lastSettings.EnabledActivities)

	custom, ok := s.recs.lastSettings.CustomThresholds[suitability.ActivityGardening]
	require.True(t, ok)
	require.NotNil(t, custom.Temperature)
	assert.Equal(t, 20.0, *custom.Temperature.Optimal)
	require.NotNil(t, custom.WindMax)
	assert.Equal(t, 8.0, *custom.WindMax)
	assert.Nil(t, custom.Humidity)

	assert.Equal(t, 51.5, s.recs.lastLat)
	assert.Equal(t, weather.UnitsMetric, s.recs.lastUnits)
}

func TestRecommendations_PostInvalid(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantFields  []string
	}{
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"lat": `,
			wantStatus:  http.StatusBadRequest,
			wantFields:  []string{},
		},
		{
			name:        "missing longitude",
			contentType: "application/json",
			body:        `{"lat": 10}`,
			wantStatus:  http.StatusBadRequest,
			wantFields:  []string{"lon"},
		},
		{
			name:        "latitude out of range",
			contentType: "application/json",
			body:        `{"lat": -91, "lon": 10, "units": "kelvin"}`,
			wantStatus:  http.StatusBadRequest,
			wantFields:  []string{"lat", "units"},
		},
		{
			name:        "not json",
			contentType: "text/plain",
			body:        `lat=10`,
			wantStatus:  http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Zero(t, s.recs.calls)
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, problemFields(decode[models.Problem](t, rec)))
			}
		})
	}
}

func TestPrecipitation_Check(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/v1/precipitation?lat=40.7128&lon=-74.006&locationId=rain-home", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.PrecipitationResponse](t, rec)
	require.NotNil(t, resp.Alert)
	assert.Equal(t, "rain-home", resp.Alert.LocationID)
	assert.Equal(t, 40.71, resp.Alert.Lat)
	assert.Equal(t, 3, resp.Alert.MinutesToStart)
	assert.Equal(t, precipitation.IntensityLight, resp.Alert.Intensity)

	rec = s.do(http.MethodGet, "/v1/precipitation?lat=40.71&lon=-74.0&locationId=home", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alert": null}`, rec.Body.String())
}

func TestPrecipitation_CheckInvalid(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantFields []string
	}{
		{"missing everything", "", []string{"lat", "lon", "locationId"}},
		{"missing location id", "lat=1&lon=1", []string{"locationId"}},
		{"blank location id", "lat=1&lon=1&locationId=%20%20", []string{"locationId"}},
		{"out of range", "lat=1&lon=200&locationId=home", []string{"lat", "lon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			rec := s.do(http.MethodGet, "/v1/precipitation?"+tt.query, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantFields, problemFields(decode[models.Problem](t, rec)))
		})
	}
}

func TestPrecipitation_Batch(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"locations": [
		{"id": "rain-a", "lat": 40.71, "lon": -74.0},
		{"id": "dry", "lat": 0, "lon": 0},
		{"id": "rain-b", "lat": 51.5, "lon": -0.12}
	]}`

	rec := s.do(http.MethodPost, "/v1/precipitation/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.PrecipitationBatchResponse](t, rec)
	require.Len(t, resp.Alerts, 2)
	assert.Equal(t, "rain-a", resp.Alerts[0].LocationID)
	assert.Equal(t, "rain-b", resp.Alerts[1].LocationID)

	require.Len(t, s.precip.batch, 3)
	assert.Equal(t, precipitation.Location{ID: "dry", Lat: 0, Lon: 0}, s.precip.batch[1])
}

func TestPrecipitation_BatchNoAlerts(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/v1/precipitation/batch", `{"locations": [{"id": "dry", "lat": 1, "lon": 1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alerts": []}`, rec.Body.String())
}

func TestPrecipitation_BatchInvalid(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{"missing locations", `{}`, []string{"locations"}},
		{"empty locations", `{"locations": []}`, []string{"locations"}},
		{"entry without id", `{"locations": [{"lat": 1, "lon": 1}]}`, []string{"locations[0].id"}},
		{"entry without coordinates", `{"locations": [{"id": "a"}]}`, []string{"locations[0].lat", "locations[0].lon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			rec := s.do(http.MethodPost, "/v1/precipitation/batch", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantFields, problemFields(decode[models.Problem](t, rec)))
			assert.Nil(t, s.precip.batch, "service not called")
		})
	}
}

func TestPrecipitation_Cooldowns(t *testing.T) {
	s := newTestServer(t, nil)
	s.precip.cooldowns["home"] = 20

	rec := s.do(http.MethodGet, "/v1/precipitation/cooldowns/home", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locationId": "home", "inCooldown": true, "remainingMinutes": 20}`, rec.Body.String())

	rec = s.do(http.MethodDelete, "/v1/precipitation/cooldowns/home", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"home"}, s.precip.cleared)

	rec = s.do(http.MethodGet, "/v1/precipitation/cooldowns/home", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locationId": "home", "inCooldown": false}`, rec.Body.String())

	rec = s.do(http.MethodDelete, "/v1/precipitation/cooldowns/never-seen", "")
	assert.Equal(t, http.StatusNoContent, rec.Code, "clearing an unknown location succeeds")

	rec = s.do(http.MethodDelete, "/v1/precipitation/cooldowns/%20", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"locationId"}, problemFields(decode[models.Problem](t, rec)))
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/v1/forecast", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ProblemTypeNotFound, decode[models.Problem](t, rec).Type)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/precipitation/batch", http.NoBody)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_PreservesClientRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/recommendations", http.NoBody)
	req.Header.Set("X-Request-Id", "dash-1234")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "dash-1234", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "dash-1234", decode[models.Problem](t, rec).TraceID)
}
