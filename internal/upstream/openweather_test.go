package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/mvikstrom/weatherdash/internal/models"
)

func newTestWeatherClient(t *testing.T, handler http.HandlerFunc) *OpenWeatherClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewOpenWeatherClient("test-api-key", srv.URL, "se", 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error: %v", err)
	}
	return client
}

// TestNewOpenWeatherClient_RequiresKey verifies construction fails without a key.
func TestNewOpenWeatherClient_RequiresKey(t *testing.T) {
	_, err := NewOpenWeatherClient("", "https://api.openweathermap.org", "", time.Second)
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("error = %v, want ErrMissingCredential", err)
	}
}

// TestCurrentWeatherRaw verifies the upstream body is returned verbatim and
// the request carries key, units, and literal coordinates.
func TestCurrentWeatherRaw(t *testing.T) {
	const upstreamBody = `{"main":{"temp":3.7,"humidity":81},"name":"Stockholm"}`
	var gotQuery map[string]string

	client := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"lat":   q.Get("lat"),
			"lon":   q.Get("lon"),
			"appid": q.Get("appid"),
			"units": q.Get("units"),
			"lang":  q.Get("lang"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstreamBody))
	})

	raw, err := client.CurrentWeatherRaw(context.Background(), "59.3293", "18.0686")
	if err != nil {
		t.Fatalf("CurrentWeatherRaw() error: %v", err)
	}
	if string(raw) != upstreamBody {
		t.Errorf("body = %q, want verbatim upstream body", string(raw))
	}
	if gotQuery["lat"] != "59.3293" || gotQuery["lon"] != "18.0686" {
		t.Errorf("coordinates rewritten: %v", gotQuery)
	}
	if gotQuery["appid"] != "test-api-key" || gotQuery["units"] != "metric" || gotQuery["lang"] != "se" {
		t.Errorf("request params = %v, want appid/units/lang set", gotQuery)
	}
}

// TestCurrentWeatherRaw_UpstreamError verifies a non-2xx maps to StatusError
// carrying the upstream status and body.
func TestCurrentWeatherRaw_UpstreamError(t *testing.T) {
	client := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
	})

	_, err := client.CurrentWeatherRaw(context.Background(), "0", "0")

	se, ok := AsStatusError(err)
	if !ok {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", se.StatusCode)
	}
	if se.API != "weather" {
		t.Errorf("API = %q, want weather", se.API)
	}
}

// TestCurrentConditions verifies parsing and rounding of the compact entry.
func TestCurrentConditions(t *testing.T) {
	client := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main":{"temp":3.6},"weather":[{"icon":"13d"}]}`))
	})

	before := time.Now().UnixMilli()
	got, err := client.CurrentConditions(context.Background(), models.Location{
		Name: "Stockholm", Lat: 59.3293, Lon: 18.0686,
	})
	if err != nil {
		t.Fatalf("CurrentConditions() error: %v", err)
	}
	if got.Temp != 4 {
		t.Errorf("Temp = %d, want 4 (rounded from 3.6)", got.Temp)
	}
	if got.Icon != "13d" {
		t.Errorf("Icon = %q, want 13d", got.Icon)
	}
	if got.Timestamp < before {
		t.Errorf("Timestamp = %d, want >= fetch time %d", got.Timestamp, before)
	}
}

// TestCurrentConditions_MissingFields verifies a 2xx body without expected
// fields is an ErrMalformedResponse, not a zero-valued success.
func TestCurrentConditions_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no main", `{"weather":[{"icon":"01d"}]}`},
		{"no weather", `{"main":{"temp":1.0}}`},
		{"empty weather", `{"main":{"temp":1.0},"weather":[]}`},
		{"not json", `<html>gateway error</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.CurrentConditions(context.Background(), models.Location{Name: "X"})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

// TestForecastSamples verifies 3-hourly entries are converted using the
// city's timezone offset, so noon proximity is judged in local time.
func TestForecastSamples(t *testing.T) {
	// 2025-03-10 10:00 UTC with a +2h offset is 12:00 local.
	dt := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC).Unix()
	client := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"list":[{"dt":` + strconv.FormatInt(dt, 10) + `,"main":{"temp":7.2,"humidity":68},
				"weather":[{"description":"scattered clouds","icon":"03d"}],
				"wind":{"speed":4.1}}],
			"city":{"timezone":7200}
		}`))
	})

	samples, err := client.ForecastSamples(context.Background(), "59.3", "18.0")
	if err != nil {
		t.Fatalf("ForecastSamples() error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	s := samples[0]
	if s.Time.Hour() != 12 {
		t.Errorf("local hour = %d, want 12 (10:00 UTC + 7200s)", s.Time.Hour())
	}
	if s.Temp != 7.2 || s.Humidity != 68 || s.WindSpeed != 4.1 {
		t.Errorf("sample = %+v, want parsed main/wind fields", s)
	}
	if s.Description != "scattered clouds" || s.Icon != "03d" {
		t.Errorf("sample weather = %q %q", s.Description, s.Icon)
	}
}

// TestForecastSamples_EmptyList verifies an empty list is malformed.
func TestForecastSamples_EmptyList(t *testing.T) {
	client := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"list":[],"city":{"timezone":0}}`))
	})

	_, err := client.ForecastSamples(context.Background(), "59.3", "18.0")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

// TestSearchLocations verifies the result mapping, the five-hit cap request
// parameter, and the valid empty result.
func TestSearchLocations(t *testing.T) {
	var gotLimit string
	client := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[
			{"name":"Stockholm","country":"SE","state":"Stockholm County","lat":59.3293,"lon":18.0686},
			{"name":"Stockholm","country":"US","state":"Wisconsin","lat":44.48,"lon":-92.26}
		]`))
	})

	locs, err := client.SearchLocations(context.Background(), "Stockholm")
	if err != nil {
		t.Fatalf("SearchLocations() error: %v", err)
	}
	if gotLimit != "5" {
		t.Errorf("limit param = %q, want 5", gotLimit)
	}
	if len(locs) != 2 {
		t.Fatalf("got %d locations, want 2", len(locs))
	}
	if locs[0].Country != "SE" || locs[0].State != "Stockholm County" {
		t.Errorf("first hit = %+v, want mapped country/state", locs[0])
	}

	empty := newTestWeatherClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	locs, err = empty.SearchLocations(context.Background(), "Nowhere")
	if err != nil {
		t.Fatalf("SearchLocations() empty error: %v", err)
	}
	if locs == nil || len(locs) != 0 {
		t.Errorf("empty search = %v, want non-nil empty slice", locs)
	}
}
