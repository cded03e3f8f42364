package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/mvikstrom/weatherdash/internal/forecast"
	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/observability"
)

const searchResultLimit = 5

// WeatherAPI is the OpenWeather surface the proxy handlers depend on.
type WeatherAPI interface {
	CurrentWeatherRaw(ctx context.Context, lat, lon string) (json.RawMessage, error)
	CurrentConditions(ctx context.Context, loc models.Location) (models.SavedWeather, error)
	ForecastSamples(ctx context.Context, lat, lon string) ([]forecast.Sample, error)
	SearchLocations(ctx context.Context, query string) ([]models.Location, error)
}

// OpenWeatherClient calls the OpenWeather current-weather, forecast, and
// geocoding APIs with a server-held key. Requests are always metric; unit
// conversion is a display concern.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	lang    string
	client  *http.Client
}

// NewOpenWeatherClient creates a client for the given API base URL
// (e.g. "https://api.openweathermap.org"). lang may be empty.
func NewOpenWeatherClient(apiKey, baseURL, lang string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: weather API key is required", ErrMissingCredential)
	}
	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		lang:    lang,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// CurrentWeatherRaw fetches current conditions for the literal coordinate
// pair and returns the upstream JSON body verbatim.
func (c *OpenWeatherClient) CurrentWeatherRaw(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	body, err := c.get(ctx, "/data/2.5/weather", coordParams(lat, lon))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// currentResponse is the parse boundary for the fields the batch endpoint
// needs from a current-weather body.
type currentResponse struct {
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Icon string `json:"icon"`
	} `json:"weather"`
}

// CurrentConditions fetches and parses the compact temp/icon pair for a
// saved location.
func (c *OpenWeatherClient) CurrentConditions(ctx context.Context, loc models.Location) (models.SavedWeather, error) {
	body, err := c.get(ctx, "/data/2.5/weather", coordParams(formatCoord(loc.Lat), formatCoord(loc.Lon)))
	if err != nil {
		return models.SavedWeather{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.SavedWeather{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Main == nil || len(resp.Weather) == 0 {
		return models.SavedWeather{}, fmt.Errorf("%w: missing main or weather fields", ErrMalformedResponse)
	}
	return models.SavedWeather{
		Temp:      int(math.Round(resp.Main.Temp)),
		Icon:      resp.Weather[0].Icon,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// forecastResponse is the parse boundary for the 3-hourly forecast body.
type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
	City struct {
		Timezone int `json:"timezone"` // seconds east of UTC
	} `json:"city"`
}

// ForecastSamples fetches the 3-hourly forecast and converts each entry to a
// sample in the city's local time, so "closest to noon" means local noon.
func (c *OpenWeatherClient) ForecastSamples(ctx context.Context, lat, lon string) ([]forecast.Sample, error) {
	body, err := c.get(ctx, "/data/2.5/forecast", coordParams(lat, lon))
	if err != nil {
		return nil, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.List) == 0 {
		return nil, fmt.Errorf("%w: empty forecast list", ErrMalformedResponse)
	}

	zone := time.FixedZone("local", resp.City.Timezone)
	samples := make([]forecast.Sample, 0, len(resp.List))
	for _, item := range resp.List {
		if item.Main == nil || len(item.Weather) == 0 {
			return nil, fmt.Errorf("%w: forecast entry missing main or weather", ErrMalformedResponse)
		}
		samples = append(samples, forecast.Sample{
			Time:        time.Unix(item.Dt, 0).In(zone),
			Temp:        item.Main.Temp,
			Description: item.Weather[0].Description,
			Icon:        item.Weather[0].Icon,
			Humidity:    item.Main.Humidity,
			WindSpeed:   item.Wind.Speed,
		})
	}
	return samples, nil
}

// geocodeHit is the parse boundary for one geocoding result.
type geocodeHit struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// SearchLocations resolves a free-text query to at most five locations.
// An empty result set is valid and returns an empty slice, not an error.
func (c *OpenWeatherClient) SearchLocations(ctx context.Context, query string) ([]models.Location, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(searchResultLimit))

	body, err := c.get(ctx, "/geo/1.0/direct", params)
	if err != nil {
		return nil, err
	}

	var hits []geocodeHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	locations := make([]models.Location, 0, len(hits))
	for _, h := range hits {
		locations = append(locations, models.Location{
			Name:    h.Name,
			Country: h.Country,
			State:   h.State,
			Lat:     h.Lat,
			Lon:     h.Lon,
		})
	}
	return locations, nil
}

func coordParams(lat, lon string) url.Values {
	params := url.Values{}
	params.Set("lat", lat)
	params.Set("lon", lon)
	params.Set("units", "metric")
	return params
}

// get performs one GET against the OpenWeather API. No retries: callers see
// the first failure as-is.
func (c *OpenWeatherClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	start := time.Now()
	api := apiLabel(path)

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params.Set("appid", c.apiKey)
	if c.lang != "" && path != "/geo/1.0/direct" {
		params.Set("lang", c.lang)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.ObserveUpstreamCall(api, "error", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.ObserveUpstreamCall(api, "error", time.Since(start))
		return nil, fmt.Errorf("read response body: %w", err)
	}

	observability.ObserveUpstreamCall(api, statusLabel(resp.StatusCode), time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			API:        api,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	return body, nil
}

func apiLabel(path string) string {
	switch path {
	case "/data/2.5/weather":
		return "weather"
	case "/data/2.5/forecast":
		return "forecast"
	case "/geo/1.0/direct":
		return "geocode"
	default:
		return "other"
	}
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%v", v)
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}
