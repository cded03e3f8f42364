package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/forecast"
	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/upstream"
)

type fakeWeatherAPI struct {
	raw           json.RawMessage
	rawErr        error
	samples       []forecast.Sample
	samplesErr    error
	locations     []models.Location
	searchErr     error
	conditions    map[string]models.SavedWeather
	conditionsErr map[string]error
}

func (f *fakeWeatherAPI) CurrentWeatherRaw(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	return f.raw, f.rawErr
}

func (f *fakeWeatherAPI) CurrentConditions(ctx context.Context, loc models.Location) (models.SavedWeather, error) {
	if err, ok := f.conditionsErr[loc.Name]; ok {
		return models.SavedWeather{}, err
	}
	return f.conditions[loc.Name], nil
}

func (f *fakeWeatherAPI) ForecastSamples(ctx context.Context, lat, lon string) ([]forecast.Sample, error) {
	return f.samples, f.samplesErr
}

func (f *fakeWeatherAPI) SearchLocations(ctx context.Context, query string) ([]models.Location, error) {
	return f.locations, f.searchErr
}

type fakePhotoAPI struct {
	photo models.CityPhoto
	err   error
}

func (f *fakePhotoAPI) CityPhoto(ctx context.Context, cityName string) (models.CityPhoto, error) {
	return f.photo, f.err
}

func newTestHandler(weather *fakeWeatherAPI, photos *fakePhotoAPI) *Handler {
	logger := zap.NewNop()
	if weather == nil {
		weather = &fakeWeatherAPI{}
	}
	if photos == nil {
		photos = &fakePhotoAPI{}
	}
	return NewHandler(weather, photos, logger)
}

func doRequest(h http.HandlerFunc, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), "correlation_id", "test-correlation-id")
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// TestGetWeather_Passthrough verifies a successful fetch returns the upstream
// body verbatim.
func TestGetWeather_Passthrough(t *testing.T) {
	raw := `{"main":{"temp":12.3},"name":"Stockholm","extra":"untouched"}`
	h := newTestHandler(&fakeWeatherAPI{raw: json.RawMessage(raw)}, nil)

	w := doRequest(h.GetWeather, "GET", "/api/weather?lat=59.3293&lon=18.0686", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != raw {
		t.Errorf("body = %q, want verbatim upstream body %q", got, raw)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// TestGetWeather_MissingCoordinates verifies 400 for absent or partial
// coordinate pairs.
func TestGetWeather_MissingCoordinates(t *testing.T) {
	h := newTestHandler(nil, nil)

	for _, target := range []string{
		"/api/weather",
		"/api/weather?lat=59.3",
		"/api/weather?lon=18.0",
		"/api/weather?lat=91&lon=18.0",
	} {
		w := doRequest(h.GetWeather, "GET", target, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
		if body := decodeError(t, w); body.Error == "" {
			t.Errorf("%s: missing error field in response", target)
		}
	}
}

// TestGetWeather_UpstreamStatusMirrored verifies a non-2xx upstream status is
// propagated with the error envelope.
func TestGetWeather_UpstreamStatusMirrored(t *testing.T) {
	h := newTestHandler(&fakeWeatherAPI{rawErr: &upstream.StatusError{
		API:        "weather",
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       `{"cod":"404"}`,
	}}, nil)

	w := doRequest(h.GetWeather, "GET", "/api/weather?lat=59.3&lon=18.0", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want mirrored 404", w.Code)
	}
	body := decodeError(t, w)
	if body.Error != "Failed to fetch weather data" {
		t.Errorf("error = %q, want generic message", body.Error)
	}
	if body.Message != "404 Not Found" {
		t.Errorf("message = %q, want upstream status text", body.Message)
	}
}

// TestGetWeather_UnexpectedError verifies unexpected failures map to 500.
func TestGetWeather_UnexpectedError(t *testing.T) {
	h := newTestHandler(&fakeWeatherAPI{rawErr: errors.New("connection refused")}, nil)

	w := doRequest(h.GetWeather, "GET", "/api/weather?lat=59.3&lon=18.0", "")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// TestGetForecast_Reduced verifies the handler returns the daily reduction
// under the "list" key.
func TestGetForecast_Reduced(t *testing.T) {
	day := func(d, hour int, temp float64) forecast.Sample {
		return forecast.Sample{
			Time:        time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC),
			Temp:        temp,
			Description: "light rain",
			Icon:        "10d",
		}
	}
	h := newTestHandler(&fakeWeatherAPI{samples: []forecast.Sample{
		day(10, 9, 5), day(10, 13, 8), day(11, 11, 3),
	}}, nil)

	w := doRequest(h.GetForecast, "GET", "/api/forecast?lat=59.3&lon=18.0", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		List []models.DailyForecastEntry `json:"list"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.List) != 2 {
		t.Fatalf("list length = %d, want 2", len(resp.List))
	}
	if resp.List[0].Temp != 8 || resp.List[1].Temp != 3 {
		t.Errorf("temps = [%d, %d], want [8, 3]", resp.List[0].Temp, resp.List[1].Temp)
	}
}

// TestSearchLocation verifies query validation and result passthrough,
// including the empty-but-valid result case.
func TestSearchLocation(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		h := newTestHandler(nil, nil)
		w := doRequest(h.SearchLocation, "GET", "/api/search", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("results", func(t *testing.T) {
		h := newTestHandler(&fakeWeatherAPI{locations: []models.Location{
			{Name: "Stockholm", Country: "SE", Lat: 59.3293, Lon: 18.0686},
		}}, nil)
		w := doRequest(h.SearchLocation, "GET", "/api/search?query=Stockholm", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var locs []models.Location
		if err := json.NewDecoder(w.Body).Decode(&locs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(locs) != 1 || locs[0].Name != "Stockholm" {
			t.Errorf("locations = %v, want single Stockholm hit", locs)
		}
	})

	t.Run("empty result is 200 with empty array", func(t *testing.T) {
		h := newTestHandler(&fakeWeatherAPI{locations: []models.Location{}}, nil)
		w := doRequest(h.SearchLocation, "GET", "/api/search?query=Nowhere", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != "[]" {
			t.Errorf("body = %q, want empty JSON array", got)
		}
	})
}

// TestGetCityPhoto covers the photo endpoint's taxonomy: 400 missing param,
// 500 missing credential, 404 no place / no photo, 200 success.
func TestGetCityPhoto(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		photos     *fakePhotoAPI
		wantStatus int
	}{
		{"missing cityName", "/api/city-photo", &fakePhotoAPI{}, http.StatusBadRequest},
		{"missing credential", "/api/city-photo?cityName=Oslo",
			&fakePhotoAPI{err: upstream.ErrMissingCredential}, http.StatusInternalServerError},
		{"no places", "/api/city-photo?cityName=Nonexistent1234City",
			&fakePhotoAPI{err: upstream.ErrNoPlace}, http.StatusNotFound},
		{"no photos", "/api/city-photo?cityName=Oslo",
			&fakePhotoAPI{err: upstream.ErrNoPhoto}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(nil, tt.photos)
			w := doRequest(h.GetCityPhoto, "GET", tt.target, "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeError(t, w); body.Error == "" {
				t.Error("missing error field in response")
			}
		})
	}

	t.Run("success", func(t *testing.T) {
		h := newTestHandler(nil, &fakePhotoAPI{photo: models.CityPhoto{
			PhotoURL:  "https://places.example/v1/places/abc/photos/def/media?maxHeightPx=800&maxWidthPx=1200&key=k",
			PlaceName: "Oslo Opera House",
		}})
		w := doRequest(h.GetCityPhoto, "GET", "/api/city-photo?cityName=Oslo", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var photo models.CityPhoto
		if err := json.NewDecoder(w.Body).Decode(&photo); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if photo.PhotoURL == "" || photo.PlaceName != "Oslo Opera House" {
			t.Errorf("unexpected photo payload: %+v", photo)
		}
	})
}

// TestGetSavedLocationWeather_BadRequest covers body validation failures.
func TestGetSavedLocationWeather_BadRequest(t *testing.T) {
	h := newTestHandler(nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"no body", ""},
		{"not json", "not-json"},
		{"empty object", `{}`},
		{"empty array", `{"locations":[]}`},
		{"missing name", `{"locations":[{"lat":1,"lon":2}]}`},
		{"lat out of range", `{"locations":[{"name":"X","lat":95,"lon":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(h.GetSavedLocationWeather, "POST", "/api/saved-weather", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

// TestGetSavedLocationWeather_PartialFailure verifies that when one of three
// locations fails upstream, the response contains exactly the two successful
// keys and no error for the third.
func TestGetSavedLocationWeather_PartialFailure(t *testing.T) {
	weather := &fakeWeatherAPI{
		conditions: map[string]models.SavedWeather{
			"Stockholm": {Temp: 4, Icon: "04d", Timestamp: 1234},
			"Oslo":      {Temp: 2, Icon: "13d", Timestamp: 1234},
		},
		conditionsErr: map[string]error{
			"Reykjavik": errors.New("upstream unavailable"),
		},
	}
	h := newTestHandler(weather, nil)

	body := `{"locations":[
		{"name":"Stockholm","lat":59.3293,"lon":18.0686},
		{"name":"Oslo","lat":59.9139,"lon":10.7522},
		{"name":"Reykjavik","lat":64.1466,"lon":-21.9426}
	]}`
	w := doRequest(h.GetSavedLocationWeather, "POST", "/api/saved-weather", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		WeatherData map[string]models.SavedWeather `json:"weatherData"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.WeatherData) != 2 {
		t.Fatalf("weatherData has %d keys, want 2: %v", len(resp.WeatherData), resp.WeatherData)
	}
	stockholmKey := models.FormatKey(59.3293, 18.0686)
	if entry, ok := resp.WeatherData[stockholmKey]; !ok || entry.Temp != 4 {
		t.Errorf("weatherData[%q] = %+v ok=%v, want temp 4", stockholmKey, entry, ok)
	}
	reykjavikKey := models.FormatKey(64.1466, -21.9426)
	if _, ok := resp.WeatherData[reykjavikKey]; ok {
		t.Errorf("failed location %q should be absent from response", reykjavikKey)
	}
}
