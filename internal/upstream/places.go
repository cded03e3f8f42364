package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/observability"
)

// Photo media dimensions requested from the Places API.
const (
	photoMaxHeightPx = 800
	photoMaxWidthPx  = 1200
)

// PhotoAPI is the place-photo surface the proxy handlers depend on.
type PhotoAPI interface {
	CityPhoto(ctx context.Context, cityName string) (models.CityPhoto, error)
}

// PlacesClient resolves a city name to a representative landmark photo URL
// via the Google Places text-search API. The photo path is decorative, so
// calls run behind a circuit breaker: when the upstream keeps failing the
// breaker opens and lookups fail fast instead of hammering it.
type PlacesClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewPlacesClient creates a client for the given API base URL
// (e.g. "https://places.googleapis.com"). An empty key is allowed at
// construction so the service can start without the photo feature; lookups
// then fail with ErrMissingCredential.
func NewPlacesClient(apiKey, baseURL string, timeout time.Duration) *PlacesClient {
	return &PlacesClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "places",
			Interval: 1 * time.Minute,
			Timeout:  2 * time.Minute,
		}),
	}
}

// textSearchResponse is the parse boundary for a Places text-search body.
type textSearchResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		Photos []struct {
			Name string `json:"name"`
		} `json:"photos"`
	} `json:"places"`
}

// CityPhoto searches for "<city> landmark", takes the first place that has a
// photo, and returns a media URL built from the photo's resource name. The
// photo bytes are never fetched.
func (c *PlacesClient) CityPhoto(ctx context.Context, cityName string) (models.CityPhoto, error) {
	if c.apiKey == "" {
		return models.CityPhoto{}, fmt.Errorf("%w: places API key is required", ErrMissingCredential)
	}

	body, err := c.textSearch(ctx, cityName+" landmark")
	if err != nil {
		return models.CityPhoto{}, err
	}

	var resp textSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.CityPhoto{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Places) == 0 {
		return models.CityPhoto{}, ErrNoPlace
	}

	for _, place := range resp.Places {
		if len(place.Photos) == 0 {
			continue
		}
		photoURL := fmt.Sprintf("%s/v1/%s/media?maxHeightPx=%d&maxWidthPx=%d&key=%s",
			c.baseURL, place.Photos[0].Name, photoMaxHeightPx, photoMaxWidthPx, c.apiKey)
		placeName := place.DisplayName.Text
		if placeName == "" {
			placeName = cityName
		}
		return models.CityPhoto{PhotoURL: photoURL, PlaceName: placeName}, nil
	}
	return models.CityPhoto{}, ErrNoPhoto
}

func (c *PlacesClient) textSearch(ctx context.Context, query string) ([]byte, error) {
	start := time.Now()

	payload, err := json.Marshal(map[string]string{
		"textQuery":    query,
		"languageCode": "en",
	})
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/places:searchText", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		req.Header.Set("X-Goog-FieldMask", "places.id,places.displayName,places.photos")

		resp, err := c.client.Do(req)
		if err != nil {
			observability.ObserveUpstreamCall("places", "error", time.Since(start))
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			observability.ObserveUpstreamCall("places", "error", time.Since(start))
			return nil, fmt.Errorf("read response body: %w", err)
		}

		observability.ObserveUpstreamCall("places", statusLabel(resp.StatusCode), time.Since(start))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{
				API:        "places",
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(body),
			}
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.PhotoBreakerOpenTotal.Inc()
		}
		return nil, err
	}
	return result.([]byte), nil
}
