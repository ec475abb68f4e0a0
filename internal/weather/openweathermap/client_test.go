package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skydeck/skydeck/internal/provider/resilience"
	"github.com/skydeck/skydeck/internal/weather"
	"github.com/skydeck/skydeck/internal/weather/openweathermap"
)

func testHTTPClient() *resilience.Client {
	cfg := resilience.DefaultClientConfig("test")
	cfg.NoRetry = true
	return resilience.NewClient(cfg)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T, airStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Contains(t, r.URL.Query().Get("lat"), "40.71")
		assert.Contains(t, r.URL.Query().Get("lon"), "-74.00")

		writeJSON(w, map[string]any{
			"coord": map[string]float64{"lat": 40.71, "lon": -74.0},
			"main":  map[string]float64{"temp": 65, "humidity": 50},
			"wind":  map[string]float64{"speed": 5},
			"rain":  map[string]float64{"1h": 2.54},
			"dt":    1717250400,
		})
	})
	mux.HandleFunc("/air_pollution", func(w http.ResponseWriter, r *http.Request) {
		if airStatus != http.StatusOK {
			w.WriteHeader(airStatus)
			return
		}
		writeJSON(w, map[string]any{
			"list": []map[string]any{
				{"components": map[string]float64{"pm2_5": 9.0, "pm10": 10, "o3": 20}},
			},
		})
	})
	mux.HandleFunc("/onecall", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("exclude") {
		case "current,minutely,daily,alerts":
			writeJSON(w, map[string]any{
				"timezone":        "America/New_York",
				"timezone_offset": -4 * 3600,
				"hourly": []map[string]any{
					{"dt": 1717250400, "temp": 62, "humidity": 55, "wind_speed": 6},
					{"dt": 1717254000, "temp": 64, "humidity": 52, "wind_speed": 7, "rain": map[string]float64{"1h": 5.08}},
				},
			})
		case "current,hourly,daily,alerts":
			writeJSON(w, map[string]any{
				"minutely": []map[string]any{
					{"dt": 1717250400, "precipitation": 0},
					{"dt": 1717250460, "precipitation": 0.3},
				},
			})
		default:
			t.Errorf("unexpected exclude: %q", r.URL.Query().Get("exclude"))
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	return httptest.NewServer(mux)
}

func newTestClient(serverURL string) *openweathermap.Client {
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:          "test-key",
		BaseURL:         serverURL,
		OneCallURL:      serverURL + "/onecall",
		AirPollutionURL: serverURL + "/air_pollution",
		HTTPClient:      testHTTPClient(),
	})
}

func TestClient_Name(t *testing.T) {
	client := openweathermap.NewClient(openweathermap.ClientConfig{APIKey: "k"})
	assert.Equal(t, "openweathermap", client.Name())
}

func TestClient_GetCurrentWeather(t *testing.T) {
	server := newTestServer(t, http.StatusOK)
	defer server.Close()

	client := newTestClient(server.URL)

	obs, err := client.GetCurrentWeather(context.Background(), 40.71, -74.0, weather.UnitsImperial)
	require.NoError(t, err)
	require.NotNil(t, obs)

	assert.Equal(t, 40.71, obs.Lat)
	assert.Equal(t, 65.0, obs.Temperature)
	assert.Equal(t, 5.0, obs.WindSpeed)
	assert.Equal(t, 50.0, obs.Humidity)
	assert.InDelta(t, 0.1, obs.Precipitation, 1e-9, "2.54mm is 0.1in")
	assert.Equal(t, weather.UnitsImperial, obs.Units)
	assert.Equal(t, time.Unix(1717250400, 0).UTC(), obs.ObservedAt)

	require.NotNil(t, obs.AQI)
	assert.Equal(t, 50.0, *obs.AQI)
}

func TestClient_GetCurrentWeather_MetricKeepsMillimetres(t *testing.T) {
	server := newTestServer(t, http.StatusOK)
	defer server.Close()

	client := newTestClient(server.URL)

	obs, err := client.GetCurrentWeather(context.Background(), 40.71, -74.0, weather.UnitsMetric)
	require.NoError(t, err)
	assert.Equal(t, 2.54, obs.Precipitation)
	assert.Equal(t, weather.UnitsMetric, obs.Units)
}

func TestClient_GetCurrentWeather_AirQualityFailureLeavesAQINil(t *testing.T) {
	server := newTestServer(t, http.StatusUnauthorized)
	defer server.Close()

	client := newTestClient(server.URL)

	obs, err := client.GetCurrentWeather(context.Background(), 40.71, -74.0, weather.UnitsImperial)
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Nil(t, obs.AQI)
	assert.Equal(t, 65.0, obs.Temperature)
}

func TestClient_GetCurrentWeather_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.GetCurrentWeather(context.Background(), 40.71, -74.0, weather.UnitsImperial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 401")
}

func TestClient_GetCurrentWeather_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.GetCurrentWeather(context.Background(), 40.71, -74.0, weather.UnitsImperial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestClient_GetHourlyForecast(t *testing.T) {
	server := newTestServer(t, http.StatusOK)
	defer server.Close()

	client := newTestClient(server.URL)

	hourly, err := client.GetHourlyForecast(context.Background(), 40.71, -74.0, weather.UnitsImperial)
	require.NoError(t, err)
	require.Len(t, hourly, 2)

	// 1717250400 is 14:00 UTC, 10:00 at UTC-4.
	assert.Equal(t, "10:00", hourly[0].Label())
	assert.Equal(t, "11:00", hourly[1].Label())
	assert.Equal(t, 62.0, hourly[0].Temperature)
	assert.Equal(t, 6.0, hourly[0].WindSpeed)
	assert.Equal(t, 55.0, hourly[0].Humidity)
	assert.Equal(t, 0.0, hourly[0].Precipitation)
	assert.InDelta(t, 0.2, hourly[1].Precipitation, 1e-9)
	assert.Nil(t, hourly[0].AQI)
}

func TestClient_GetMinutelyPrecipitation(t *testing.T) {
	server := newTestServer(t, http.StatusOK)
	defer server.Close()

	client := newTestClient(server.URL)

	samples, err := client.GetMinutelyPrecipitation(context.Background(), 40.71, -74.0)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, 0.0, samples[0].Intensity)
	assert.Equal(t, 0.3, samples[1].Intensity)
	assert.Equal(t, time.Unix(1717250460, 0).UTC(), samples[1].Time)
}

func TestClient_GetMinutelyPrecipitation_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.GetMinutelyPrecipitation(context.Background(), 40.71, -74.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
