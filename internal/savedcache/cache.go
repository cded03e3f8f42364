// Package savedcache maintains a TTL cache of compact current-conditions
// entries for the user's saved locations, persisted through the storage
// layer so a restart serves the last known readings immediately.
package savedcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/observability"
	"github.com/mvikstrom/weatherdash/internal/store"
)

// DefaultTTL is how long a cached entry counts as fresh.
const DefaultTTL = time.Hour

// BatchFetcher fetches current conditions for a set of locations in one
// call, keyed by location key. Locations that could not be fetched are
// absent from the result. Satisfied by the dashboard API client and by
// UpstreamFetcher.
type BatchFetcher interface {
	SavedLocationWeather(ctx context.Context, locations []models.Location) (map[string]models.SavedWeather, error)
}

// Cache is the saved-location weather cache. Entries are keyed by the
// location's coordinate key and persisted as one JSON mapping under a single
// storage key, so partial writes never leave a torn cache.
type Cache struct {
	store   store.Store
	fetcher BatchFetcher
	logger  *zap.Logger
	ttl     time.Duration
	now     func() time.Time

	// mu serializes the load-merge-persist cycle so a reconcile and a prune
	// running at the same time cannot lose each other's write.
	mu sync.Mutex
}

// New creates a cache. A non-positive ttl falls back to DefaultTTL.
func New(s store.Store, fetcher BatchFetcher, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:   s,
		fetcher: fetcher,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Load reads the persisted mapping. Corrupt or missing data yields an empty
// mapping, never an error: the cache is an optimization and rebuilds itself
// on the next reconcile.
func (c *Cache) Load(ctx context.Context) map[string]models.SavedWeather {
	value, ok, err := c.store.Get(ctx, store.KeySavedWeather)
	if err != nil {
		c.logger.Warn("failed to read saved weather cache", zap.Error(err))
		return map[string]models.SavedWeather{}
	}
	if !ok {
		return map[string]models.SavedWeather{}
	}

	var entries map[string]models.SavedWeather
	if err := json.Unmarshal([]byte(value), &entries); err != nil {
		c.logger.Warn("discarding corrupt saved weather cache", zap.Error(err))
		return map[string]models.SavedWeather{}
	}
	if entries == nil {
		entries = map[string]models.SavedWeather{}
	}
	return entries
}

// Fresh reports whether the entry is within the TTL. An entry exactly at the
// TTL boundary still counts as fresh.
func (c *Cache) Fresh(entry models.SavedWeather) bool {
	age := c.now().UnixMilli() - entry.Timestamp
	return age <= c.ttl.Milliseconds()
}

// Reconcile brings the cache in line with the given saved locations: exactly
// the absent-or-stale subset is refetched in one batch call, fresh entries
// are kept as-is, and the merged mapping is persisted. A failed batch call
// leaves every entry untouched, so stale readings outlive a flaky upstream;
// locations the batch omitted keep their previous entry too.
//
// It returns the entries for the given locations, freshest available.
func (c *Cache) Reconcile(ctx context.Context, locations []models.Location) map[string]models.SavedWeather {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.Load(ctx)

	var toFetch []models.Location
	for _, loc := range locations {
		if entry, ok := entries[loc.Key()]; ok && c.Fresh(entry) {
			continue
		}
		toFetch = append(toFetch, loc)
	}

	refreshed := 0
	if len(toFetch) > 0 {
		fetched, err := c.fetcher.SavedLocationWeather(ctx, toFetch)
		if err != nil {
			c.logger.Warn("saved weather refresh failed",
				zap.Int("locations", len(toFetch)),
				zap.Error(err))
			observability.CacheReconcileTotal.WithLabelValues("failed").Inc()
			return c.entriesFor(entries, locations)
		}
		for key, entry := range fetched {
			entries[key] = entry
			refreshed++
		}
		if err := c.persist(ctx, entries); err != nil {
			c.logger.Warn("failed to persist saved weather cache", zap.Error(err))
		}
		if refreshed < len(toFetch) {
			observability.CacheReconcileTotal.WithLabelValues("partial").Inc()
		} else {
			observability.CacheReconcileTotal.WithLabelValues("success").Inc()
		}
	} else {
		observability.CacheReconcileTotal.WithLabelValues("success").Inc()
	}
	observability.CacheEntriesRefreshed.Add(float64(refreshed))

	return c.entriesFor(entries, locations)
}

func (c *Cache) entriesFor(entries map[string]models.SavedWeather, locations []models.Location) map[string]models.SavedWeather {
	result := make(map[string]models.SavedWeather, len(locations))
	for _, loc := range locations {
		if entry, ok := entries[loc.Key()]; ok {
			result[loc.Key()] = entry
		}
	}
	return result
}

// Prune drops the entry for a removed location and persists the mapping.
func (c *Cache) Prune(ctx context.Context, locationKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.Load(ctx)
	if _, ok := entries[locationKey]; !ok {
		return
	}
	delete(entries, locationKey)
	if err := c.persist(ctx, entries); err != nil {
		c.logger.Warn("failed to persist saved weather cache after prune",
			zap.String("key", locationKey),
			zap.Error(err))
	}
}

func (c *Cache) persist(ctx context.Context, entries map[string]models.SavedWeather) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, store.KeySavedWeather, string(data))
}
