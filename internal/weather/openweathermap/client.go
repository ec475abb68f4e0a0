package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/airquality"
	"github.com/skydeck/skydeck/internal/provider/resilience"
	"github.com/skydeck/skydeck/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultOneCallURL is the OpenWeatherMap OneCall API 3.0 base URL.
	DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"

	// DefaultAirPollutionURL is the OpenWeatherMap air pollution endpoint.
	DefaultAirPollutionURL = "https://api.openweathermap.org/data/2.5/air_pollution"

	mmPerInch = 25.4
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// OneCallURL is the OneCall API URL (optional, defaults to OneCall 3.0).
	OneCallURL string

	// AirPollutionURL is the air pollution API URL (optional).
	AirPollutionURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey          string
	baseURL         string
	oneCallURL      string
	airPollutionURL string
	httpClient      *resilience.Client
	logger          zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	oneCallURL := cfg.OneCallURL
	if oneCallURL == "" {
		oneCallURL = DefaultOneCallURL
	}

	airPollutionURL := cfg.AirPollutionURL
	if airPollutionURL == "" {
		airPollutionURL = DefaultAirPollutionURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         baseURL,
		oneCallURL:      oneCallURL,
		airPollutionURL: airPollutionURL,
		httpClient:      httpClient,
		logger:          cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetCurrentWeather fetches current conditions and enriches them with the
// AQI. An air pollution failure leaves AQI nil instead of failing the call.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64, units weather.Units) (*weather.Observation, error) {
	var resp currentWeatherResponse
	if err := c.getJSON(ctx, c.baseURL+"/weather", c.query(lat, lon, units), &resp); err != nil {
		return nil, err
	}

	obs := &weather.Observation{
		Lat:           resp.Coord.Lat,
		Lon:           resp.Coord.Lon,
		Temperature:   resp.Main.Temp,
		WindSpeed:     resp.Wind.Speed,
		Precipitation: convertPrecipitation(resp.Rain.OneHour+resp.Snow.OneHour, units),
		Humidity:      resp.Main.Humidity,
		Units:         units,
		ObservedAt:    time.Unix(resp.Dt, 0).UTC(),
		FetchedAt:     time.Now().UTC(),
	}

	aqi, err := c.getAQI(ctx, lat, lon)
	if err != nil {
		c.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("air quality unavailable, continuing without aqi")
	} else {
		obs.AQI = &aqi
	}

	return obs, nil
}

// GetHourlyForecast fetches the hourly forecast from the One Call API.
// Times are shifted into the location's local offset so labels read as
// local hours.
func (c *Client) GetHourlyForecast(ctx context.Context, lat, lon float64, units weather.Units) ([]weather.HourlyObservation, error) {
	q := c.query(lat, lon, units)
	q.Set("exclude", "current,minutely,daily,alerts")

	var resp oneCallResponse
	if err := c.getJSON(ctx, c.oneCallURL, q, &resp); err != nil {
		return nil, err
	}

	zone := time.FixedZone(resp.Timezone, resp.TimezoneOffset)
	hourly := make([]weather.HourlyObservation, 0, len(resp.Hourly))
	for _, h := range resp.Hourly {
		hourly = append(hourly, weather.HourlyObservation{
			Time:          time.Unix(h.Dt, 0).In(zone),
			Temperature:   h.Temp,
			WindSpeed:     h.WindSpeed,
			Precipitation: convertPrecipitation(h.Rain.OneHour+h.Snow.OneHour, units),
			Humidity:      h.Humidity,
		})
	}

	return hourly, nil
}

// GetMinutelyPrecipitation fetches the next hour of minute-resolution
// precipitation from the One Call API.
func (c *Client) GetMinutelyPrecipitation(ctx context.Context, lat, lon float64) ([]weather.PrecipitationSample, error) {
	q := c.query(lat, lon, weather.UnitsMetric)
	q.Set("exclude", "current,hourly,daily,alerts")

	var resp oneCallResponse
	if err := c.getJSON(ctx, c.oneCallURL, q, &resp); err != nil {
		return nil, err
	}

	samples := make([]weather.PrecipitationSample, 0, len(resp.Minutely))
	for _, m := range resp.Minutely {
		samples = append(samples, weather.PrecipitationSample{
			Time:      time.Unix(m.Dt, 0).UTC(),
			Intensity: m.Precipitation,
		})
	}

	return samples, nil
}

func (c *Client) getAQI(ctx context.Context, lat, lon float64) (float64, error) {
	q := url.Values{}
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))
	q.Set("appid", c.apiKey)

	var resp airPollutionResponse
	if err := c.getJSON(ctx, c.airPollutionURL, q, &resp); err != nil {
		return 0, err
	}
	if len(resp.List) == 0 {
		return 0, airquality.ErrNoPollutants
	}

	comp := resp.List[0].Components
	idx, err := airquality.ComputeIndex(airquality.Concentrations{
		PM25: comp.PM25,
		PM10: comp.PM10,
		O3:   comp.O3,
	})
	if err != nil {
		return 0, err
	}
	return idx.Value, nil
}

func (c *Client) query(lat, lon float64, units weather.Units) url.Values {
	q := url.Values{}
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))
	q.Set("appid", c.apiKey)
	q.Set("units", string(units))
	return q
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out any) error {
	resp, err := c.httpClient.Get(ctx, endpoint+"?"+q.Encode())
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// convertPrecipitation converts OWM millimetres into the requested units.
func convertPrecipitation(mm float64, units weather.Units) float64 {
	if units == weather.UnitsImperial {
		return mm / mmPerInch
	}
	return mm
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// OpenWeatherMap API response structures.

type volume struct {
	OneHour float64 `json:"1h"`
}

type currentWeatherResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain volume `json:"rain"`
	Snow volume `json:"snow"`
	Dt   int64  `json:"dt"`
}

type oneCallResponse struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Timezone       string  `json:"timezone"`
	TimezoneOffset int     `json:"timezone_offset"`
	Hourly         []struct {
		Dt        int64   `json:"dt"`
		Temp      float64 `json:"temp"`
		Humidity  float64 `json:"humidity"`
		WindSpeed float64 `json:"wind_speed"`
		Rain      volume  `json:"rain"`
		Snow      volume  `json:"snow"`
	} `json:"hourly"`
	Minutely []struct {
		Dt            int64   `json:"dt"`
		Precipitation float64 `json:"precipitation"`
	} `json:"minutely"`
}

type airPollutionResponse struct {
	List []struct {
		Components struct {
			PM25 *float64 `json:"pm2_5"`
			PM10 *float64 `json:"pm10"`
			O3   *float64 `json:"o3"`
		} `json:"components"`
	} `json:"list"`
}
