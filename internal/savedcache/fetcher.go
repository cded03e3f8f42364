package savedcache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/upstream"
)

// UpstreamFetcher adapts the weather upstream client to BatchFetcher,
// fanning out one current-conditions call per location. Failed locations are
// omitted from the result, matching the batch endpoint's contract.
type UpstreamFetcher struct {
	weather upstream.WeatherAPI
	logger  *zap.Logger
}

// NewUpstreamFetcher returns a BatchFetcher backed by direct upstream calls.
func NewUpstreamFetcher(weather upstream.WeatherAPI, logger *zap.Logger) *UpstreamFetcher {
	return &UpstreamFetcher{weather: weather, logger: logger}
}

func (f *UpstreamFetcher) SavedLocationWeather(ctx context.Context, locations []models.Location) (map[string]models.SavedWeather, error) {
	type result struct {
		key     string
		name    string
		weather models.SavedWeather
		err     error
	}

	results := make(chan result, len(locations))
	var wg sync.WaitGroup
	for _, loc := range locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			weather, err := f.weather.CurrentConditions(ctx, loc)
			results <- result{key: loc.Key(), name: loc.Name, weather: weather, err: err}
		}()
	}
	wg.Wait()
	close(results)

	fetched := make(map[string]models.SavedWeather, len(locations))
	for res := range results {
		if res.err != nil {
			f.logger.Warn("saved location fetch failed",
				zap.String("location", res.name),
				zap.Error(res.err))
			continue
		}
		fetched[res.key] = res.weather
	}
	return fetched, nil
}
