package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given search.
	ErrNotFound = weather.ErrNotFound
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: search key, value: latest weather
	weather map[string]weather.Weather
	// key: search key, value: latest search for that key
	searches map[string]weather.Search

	// retention configuration
	maxHistory int           // max number of recent searches kept
	maxAge     time.Duration // max age of cached weather
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited; likewise maxAge.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		weather:    make(map[string]weather.Weather),
		searches:   make(map[string]weather.Search),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveWeather replaces the cached weather for the reading's search key.
func (s *MemoryStore) SaveWeather(_ context.Context, w weather.Weather) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weather[w.Search.Key()] = w
	return nil
}

// GetWeather returns cached weather for key unless it is missing or expired.
func (s *MemoryStore) GetWeather(_ context.Context, key string) (weather.Weather, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.weather[key]
	if !ok || expired(w, s.maxAge) {
		return weather.Weather{}, ErrNotFound
	}
	return w, nil
}

// SaveSearch records a search and enforces history retention.
func (s *MemoryStore) SaveSearch(_ context.Context, search weather.Search) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searches[search.Key()] = search

	// Enforce retention by count, dropping the oldest.
	if s.maxHistory > 0 && len(s.searches) > s.maxHistory {
		ordered := s.orderedLocked()
		for _, old := range ordered[s.maxHistory:] {
			delete(s.searches, old.Key())
		}
	}
	return nil
}

// RecentSearches returns searches ordered most recent first.
func (s *MemoryStore) RecentSearches(_ context.Context) ([]weather.Search, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedLocked(), nil
}

// DeleteSearch removes the search stamped with ts.
func (s *MemoryStore) DeleteSearch(_ context.Context, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, search := range s.searches {
		if search.Timestamp.Equal(ts) {
			delete(s.searches, key)
		}
	}
	return nil
}

func (s *MemoryStore) orderedLocked() []weather.Search {
	out := make([]weather.Search, 0, len(s.searches))
	for _, search := range s.searches {
		out = append(out, search)
	}
	sortRecentFirst(out)
	return out
}

func sortRecentFirst(searches []weather.Search) {
	sort.SliceStable(searches, func(i, j int) bool {
		return searches[i].Timestamp.After(searches[j].Timestamp)
	})
}

func expired(w weather.Weather, maxAge time.Duration) bool {
	if maxAge <= 0 || w.FetchedAt.IsZero() {
		return false
	}
	return time.Since(w.FetchedAt) > maxAge
}
