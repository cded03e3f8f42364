package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/forecast"
	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/observability"
	"github.com/mvikstrom/weatherdash/internal/upstream"
	"github.com/mvikstrom/weatherdash/internal/validation"
)

const maxQueryLength = 100

// Handler holds dependencies for the proxy endpoints.
type Handler struct {
	weather  upstream.WeatherAPI
	photos   upstream.PhotoAPI
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHandler returns a new Handler.
func NewHandler(weather upstream.WeatherAPI, photos upstream.PhotoAPI, logger *zap.Logger) *Handler {
	return &Handler{
		weather:  weather,
		photos:   photos,
		logger:   logger,
		validate: validator.New(),
	}
}

// GetWeather handles GET /api/weather?lat&lon. The upstream current-weather
// body is passed through verbatim on success.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Missing latitude or longitude in query parameters")
		return
	}

	body, err := h.weather.CurrentWeatherRaw(r.Context(), lat, lon)
	if err != nil {
		writeUpstreamError(w, r, err, "Failed to fetch weather data")
		return
	}
	writeRaw(w, http.StatusOK, body)
}

// GetForecast handles GET /api/forecast?lat&lon, returning the noon-proximity
// daily reduction of the upstream 3-hourly list.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Missing latitude or longitude in query parameters")
		return
	}

	samples, err := h.weather.ForecastSamples(r.Context(), lat, lon)
	if err != nil {
		writeUpstreamError(w, r, err, "Failed to fetch forecast data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"list": forecast.Reduce(samples),
	})
}

// SearchLocation handles GET /api/search?query. An empty result set is a
// valid 200 with an empty array.
func (h *Handler) SearchLocation(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidateQuery(r.URL.Query().Get("query"), maxQueryLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Missing query parameter")
		return
	}

	locations, err := h.weather.SearchLocations(r.Context(), query)
	if err != nil {
		writeUpstreamError(w, r, err, "Failed to search for location")
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

// GetCityPhoto handles GET /api/city-photo?cityName. Returns a media URL for
// the caller to load directly; photo bytes are never proxied.
func (h *Handler) GetCityPhoto(w http.ResponseWriter, r *http.Request) {
	cityName, err := validation.ValidateQuery(r.URL.Query().Get("cityName"), maxQueryLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Missing cityName parameter")
		return
	}

	photo, err := h.photos.CityPhoto(r.Context(), cityName)
	if err != nil {
		writeUpstreamError(w, r, err, "Failed to fetch city photo")
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// savedWeatherRequest is the POST body for the batch endpoint.
type savedWeatherRequest struct {
	Locations []models.Location `json:"locations" validate:"required,min=1,dive"`
}

// GetSavedLocationWeather handles POST /api/saved-weather. Every location is
// fetched concurrently; failures are logged and omitted from the response
// mapping rather than failing the batch.
func (h *Handler) GetSavedLocationWeather(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil || r.ContentLength == 0 {
		writeError(w, r, http.StatusBadRequest, "Missing location data in request body")
		return
	}

	var req savedWeatherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Missing location data in request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid or empty locations array in request body")
		return
	}

	observability.BatchLocationsPerRequest.Observe(float64(len(req.Locations)))
	logger := loggerFromRequest(r)

	type batchResult struct {
		key     string
		weather models.SavedWeather
		err     error
		name    string
	}

	results := make(chan batchResult, len(req.Locations))
	var wg sync.WaitGroup
	for _, loc := range req.Locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			weather, err := h.weather.CurrentConditions(r.Context(), loc)
			results <- batchResult{key: loc.Key(), weather: weather, err: err, name: loc.Name}
		}()
	}
	wg.Wait()
	close(results)

	weatherData := make(map[string]models.SavedWeather, len(req.Locations))
	for res := range results {
		if res.err != nil {
			observability.BatchLocationFailuresTotal.Inc()
			if logger != nil {
				logger.Warn("batch weather fetch failed",
					zap.String("location", res.name),
					zap.Error(res.err))
			}
			continue
		}
		weatherData[res.key] = res.weather
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"weatherData": weatherData,
	})
}
