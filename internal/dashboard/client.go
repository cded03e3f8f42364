// Package dashboard holds the presentation-side state machine and its typed
// client for the proxy API. It mirrors what the browser app does: select a
// location, fetch conditions and forecast, manage saved locations and the
// unit preference.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mvikstrom/weatherdash/internal/models"
)

// Client is a typed client for the proxy endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewClient creates a client for the proxy at baseURL (e.g.
// "http://localhost:8080").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// currentPayload is the parse boundary for the verbatim upstream body the
// weather endpoint passes through.
type currentPayload struct {
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
}

// FetchCurrent fetches and shapes current conditions for a location.
// Temperatures are rounded to whole degrees; sunrise/sunset become epoch
// milliseconds; LastUpdated records the fetch time, not an upstream field.
func (c *Client) FetchCurrent(ctx context.Context, loc models.Location) (models.CurrentWeather, error) {
	params := url.Values{}
	params.Set("lat", fmtCoord(loc.Lat))
	params.Set("lon", fmtCoord(loc.Lon))

	body, err := c.get(ctx, "/api/weather", params)
	if err != nil {
		return models.CurrentWeather{}, err
	}

	var payload currentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.CurrentWeather{}, fmt.Errorf("decode weather response: %w", err)
	}
	if payload.Main == nil || len(payload.Weather) == 0 {
		return models.CurrentWeather{}, fmt.Errorf("weather response missing expected fields")
	}

	return models.CurrentWeather{
		Temperature: int(math.Round(payload.Main.Temp)),
		FeelsLike:   int(math.Round(payload.Main.FeelsLike)),
		Description: payload.Weather[0].Description,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
		Pressure:    payload.Main.Pressure,
		Icon:        payload.Weather[0].Icon,
		City:        payload.Name,
		Country:     payload.Sys.Country,
		Sunrise:     payload.Sys.Sunrise * 1000,
		Sunset:      payload.Sys.Sunset * 1000,
		LastUpdated: c.now().UTC().Format(time.RFC3339),
	}, nil
}

// FetchForecast fetches the reduced daily forecast for a location.
func (c *Client) FetchForecast(ctx context.Context, loc models.Location) ([]models.DailyForecastEntry, error) {
	params := url.Values{}
	params.Set("lat", fmtCoord(loc.Lat))
	params.Set("lon", fmtCoord(loc.Lon))

	body, err := c.get(ctx, "/api/forecast", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []models.DailyForecastEntry `json:"list"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}
	return payload.List, nil
}

// SearchLocations resolves a free-text query to candidate locations. No
// matches is a valid empty result.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]models.Location, error) {
	params := url.Values{}
	params.Set("query", query)

	body, err := c.get(ctx, "/api/search", params)
	if err != nil {
		return nil, err
	}

	var locations []models.Location
	if err := json.Unmarshal(body, &locations); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return locations, nil
}

// CityPhoto fetches a representative photo URL for a city.
func (c *Client) CityPhoto(ctx context.Context, cityName string) (models.CityPhoto, error) {
	params := url.Values{}
	params.Set("cityName", cityName)

	body, err := c.get(ctx, "/api/city-photo", params)
	if err != nil {
		return models.CityPhoto{}, err
	}

	var photo models.CityPhoto
	if err := json.Unmarshal(body, &photo); err != nil {
		return models.CityPhoto{}, fmt.Errorf("decode photo response: %w", err)
	}
	return photo, nil
}

// SavedLocationWeather fetches compact conditions for the saved locations in
// one call. The result maps location keys to entries; locations whose fetch
// failed server-side are simply absent.
func (c *Client) SavedLocationWeather(ctx context.Context, locations []models.Location) (map[string]models.SavedWeather, error) {
	reqBody, err := json.Marshal(map[string][]models.Location{"locations": locations})
	if err != nil {
		return nil, fmt.Errorf("encode saved-weather request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/saved-weather", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var payload struct {
		WeatherData map[string]models.SavedWeather `json:"weatherData"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode saved-weather response: %w", err)
	}
	return payload.WeatherData, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: unexpected status %s", req.Method, req.URL.Path, resp.Status)
	}
	return body, nil
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
