package dashboard

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/store"
	"github.com/mvikstrom/weatherdash/internal/units"
)

// State is the view model's display state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// fetchErrorMessage is the single user-facing message for any failed
// location fetch; the underlying cause goes to the log only.
const fetchErrorMessage = "Failed to fetch weather data. Please try again."

// API is the proxy surface the view model consumes. Satisfied by Client.
type API interface {
	FetchCurrent(ctx context.Context, loc models.Location) (models.CurrentWeather, error)
	FetchForecast(ctx context.Context, loc models.Location) ([]models.DailyForecastEntry, error)
	CityPhoto(ctx context.Context, cityName string) (models.CityPhoto, error)
	SearchLocations(ctx context.Context, query string) ([]models.Location, error)
}

// WeatherCache is the saved-location weather cache surface the view model
// drives: reconcile on list changes, prune on removal.
type WeatherCache interface {
	Reconcile(ctx context.Context, locations []models.Location) map[string]models.SavedWeather
	Prune(ctx context.Context, locationKey string)
}

// ViewModel drives the dashboard: one selected location with its conditions,
// forecast, and photo, plus the saved-location list and unit preference.
// Saved locations and the unit survive restarts through the storage layer.
//
// All methods are safe for concurrent use. A location selection that is
// superseded by a newer one before its fetches finish is discarded, so a
// slow response never overwrites a fresher selection.
type ViewModel struct {
	api    API
	store  store.Store
	cache  WeatherCache
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	errMsg     string
	location   *models.Location
	current    *models.CurrentWeather
	forecast   []models.DailyForecastEntry
	photo      *models.CityPhoto
	saved      []models.Location
	savedWx    map[string]models.SavedWeather
	unit       string
	generation uint64
}

// NewViewModel creates an idle view model. Call Load to restore persisted
// state before the first selection.
func NewViewModel(api API, s store.Store, cache WeatherCache, logger *zap.Logger) *ViewModel {
	return &ViewModel{
		api:    api,
		store:  s,
		cache:  cache,
		logger: logger,
		state:  StateIdle,
		unit:   units.Metric,
	}
}

// Load restores saved locations and the unit preference from storage.
// Missing or corrupt data leaves the defaults in place.
func (vm *ViewModel) Load(ctx context.Context) {
	vm.mu.Lock()

	if value, ok, err := vm.store.Get(ctx, store.KeySavedLocations); err != nil {
		vm.logger.Warn("failed to read saved locations", zap.Error(err))
	} else if ok {
		var locations []models.Location
		if err := json.Unmarshal([]byte(value), &locations); err != nil {
			vm.logger.Warn("discarding corrupt saved locations", zap.Error(err))
		} else {
			vm.saved = locations
		}
	}

	if value, ok, err := vm.store.Get(ctx, store.KeyUnit); err != nil {
		vm.logger.Warn("failed to read unit preference", zap.Error(err))
	} else if ok && units.Valid(value) {
		vm.unit = value
	}

	saved := append([]models.Location(nil), vm.saved...)
	vm.mu.Unlock()

	vm.reconcileSaved(ctx, saved)
}

// Start restores persisted state and selects the startup location: the last
// selected location if one was persisted, otherwise fallback. A fallback
// without a name leaves the view model idle.
func (vm *ViewModel) Start(ctx context.Context, fallback models.Location) {
	vm.Load(ctx)

	loc := fallback
	if value, ok, err := vm.store.Get(ctx, store.KeyLastLocation); err != nil {
		vm.logger.Warn("failed to read last location", zap.Error(err))
	} else if ok {
		var last models.Location
		if err := json.Unmarshal([]byte(value), &last); err != nil {
			vm.logger.Warn("discarding corrupt last location", zap.Error(err))
		} else if last.Name != "" {
			loc = last
		}
	}

	if loc.Name == "" {
		return
	}
	vm.SelectLocation(ctx, loc)
}

// SelectLocation makes loc the current location and fetches its conditions
// and forecast. The weather fetch happens first; if either fails the view
// model enters the error state with a generic message. The city photo loads
// concurrently and its failure never affects the weather display.
func (vm *ViewModel) SelectLocation(ctx context.Context, loc models.Location) {
	vm.mu.Lock()
	vm.generation++
	gen := vm.generation
	vm.state = StateLoading
	vm.errMsg = ""
	vm.location = &loc
	vm.photo = nil
	vm.mu.Unlock()

	vm.persistLastLocation(ctx, loc)
	go vm.fetchPhoto(ctx, loc.Name, gen)

	current, err := vm.api.FetchCurrent(ctx, loc)
	if err != nil {
		vm.fail(gen, loc.Name, err)
		return
	}
	forecast, err := vm.api.FetchForecast(ctx, loc)
	if err != nil {
		vm.fail(gen, loc.Name, err)
		return
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.generation != gen {
		return
	}
	vm.current = &current
	vm.forecast = forecast
	vm.state = StateReady
}

func (vm *ViewModel) fetchPhoto(ctx context.Context, cityName string, gen uint64) {
	photo, err := vm.api.CityPhoto(ctx, cityName)
	if err != nil {
		vm.logger.Debug("city photo unavailable",
			zap.String("city", cityName),
			zap.Error(err))
		return
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.generation != gen {
		return
	}
	vm.photo = &photo
}

func (vm *ViewModel) fail(gen uint64, locationName string, err error) {
	vm.logger.Warn("location fetch failed",
		zap.String("location", locationName),
		zap.Error(err))

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.generation != gen {
		return
	}
	vm.state = StateError
	vm.errMsg = fetchErrorMessage
}

// Refresh refetches the current location, if any.
func (vm *ViewModel) Refresh(ctx context.Context) {
	vm.mu.Lock()
	loc := vm.location
	vm.mu.Unlock()
	if loc == nil {
		return
	}
	vm.SelectLocation(ctx, *loc)
}

// AddSavedLocation appends loc to the saved list unless a location with the
// same name is already saved; duplicates are a silent no-op. The updated
// list is persisted.
func (vm *ViewModel) AddSavedLocation(ctx context.Context, loc models.Location) {
	vm.mu.Lock()
	for _, existing := range vm.saved {
		if existing.Name == loc.Name {
			vm.mu.Unlock()
			return
		}
	}
	vm.saved = append(vm.saved, loc)
	saved := append([]models.Location(nil), vm.saved...)
	vm.mu.Unlock()

	vm.persistSaved(ctx, saved)
	vm.reconcileSaved(ctx, saved)
}

// RemoveSavedLocation removes every saved location whose name matches
// exactly. An unknown name is a no-op. Each removed location's cached
// weather entry is pruned.
func (vm *ViewModel) RemoveSavedLocation(ctx context.Context, name string) {
	vm.mu.Lock()
	var removed []models.Location
	kept := vm.saved[:0]
	for _, loc := range vm.saved {
		if loc.Name == name {
			removed = append(removed, loc)
			continue
		}
		kept = append(kept, loc)
	}
	if len(removed) == 0 {
		vm.mu.Unlock()
		return
	}
	vm.saved = kept
	saved := append([]models.Location(nil), vm.saved...)
	vm.mu.Unlock()

	vm.persistSaved(ctx, saved)
	if vm.cache != nil {
		for _, loc := range removed {
			vm.cache.Prune(ctx, loc.Key())
		}
	}
}

// reconcileSaved refreshes cached weather for the saved list and records the
// result for display.
func (vm *ViewModel) reconcileSaved(ctx context.Context, saved []models.Location) {
	if vm.cache == nil {
		return
	}
	entries := vm.cache.Reconcile(ctx, saved)
	vm.mu.Lock()
	vm.savedWx = entries
	vm.mu.Unlock()
}

// SavedWeather returns the latest cached conditions for the saved locations,
// keyed by location key.
func (vm *ViewModel) SavedWeather() map[string]models.SavedWeather {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make(map[string]models.SavedWeather, len(vm.savedWx))
	for k, v := range vm.savedWx {
		out[k] = v
	}
	return out
}

func (vm *ViewModel) persistLastLocation(ctx context.Context, loc models.Location) {
	data, err := json.Marshal(loc)
	if err != nil {
		vm.logger.Warn("failed to encode last location", zap.Error(err))
		return
	}
	if err := vm.store.Set(ctx, store.KeyLastLocation, string(data)); err != nil {
		vm.logger.Warn("failed to persist last location", zap.Error(err))
	}
}

func (vm *ViewModel) persistSaved(ctx context.Context, saved []models.Location) {
	data, err := json.Marshal(saved)
	if err != nil {
		vm.logger.Warn("failed to encode saved locations", zap.Error(err))
		return
	}
	if err := vm.store.Set(ctx, store.KeySavedLocations, string(data)); err != nil {
		vm.logger.Warn("failed to persist saved locations", zap.Error(err))
	}
}

// SetUnit switches the display unit system and persists the preference.
// Setting the current unit again is a no-op; an unknown unit is ignored.
// A unit change refetches the current location so displayed values follow.
func (vm *ViewModel) SetUnit(ctx context.Context, unit string) {
	if !units.Valid(unit) {
		return
	}
	vm.mu.Lock()
	if vm.unit == unit {
		vm.mu.Unlock()
		return
	}
	vm.unit = unit
	vm.mu.Unlock()

	if err := vm.store.Set(ctx, store.KeyUnit, unit); err != nil {
		vm.logger.Warn("failed to persist unit preference", zap.Error(err))
	}
	vm.Refresh(ctx)
}

// State returns the current display state and, for StateError, the message.
func (vm *ViewModel) State() (State, string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state, vm.errMsg
}

// Location returns the selected location, or false if none is selected.
func (vm *ViewModel) Location() (models.Location, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.location == nil {
		return models.Location{}, false
	}
	return *vm.location, true
}

// Current returns the current-conditions snapshot, or false before the
// first successful fetch.
func (vm *ViewModel) Current() (models.CurrentWeather, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.current == nil {
		return models.CurrentWeather{}, false
	}
	return *vm.current, true
}

// Forecast returns the reduced daily forecast for the selected location.
func (vm *ViewModel) Forecast() []models.DailyForecastEntry {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]models.DailyForecastEntry(nil), vm.forecast...)
}

// Photo returns the city photo for the selected location, or false while it
// is loading or when the lookup failed.
func (vm *ViewModel) Photo() (models.CityPhoto, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.photo == nil {
		return models.CityPhoto{}, false
	}
	return *vm.photo, true
}

// SavedLocations returns a copy of the saved-location list in saved order.
func (vm *ViewModel) SavedLocations() []models.Location {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]models.Location(nil), vm.saved...)
}

// Unit returns the active display unit system.
func (vm *ViewModel) Unit() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.unit
}
