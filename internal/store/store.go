package store

import (
	"context"
	"sync"
)

// Store is the key/value persistence boundary for client-side state: the
// saved-location list, the unit preference, the last selected location, and
// the saved-location weather mapping. Values are opaque strings (JSON blobs);
// a missing key is not an error. Implementations must be safe for concurrent
// use.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Well-known storage keys.
const (
	KeySavedLocations = "savedLocations"
	KeyUnit           = "unit"
	KeySavedWeather   = "savedLocationsWeather"
	KeyLastLocation   = "lastLocation"
)

// MemoryStore implements Store with an in-process map. Used as the default
// backend and as the substitute store in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
