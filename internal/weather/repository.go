package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Repository serves weather for searches from the local store, falling back
// to the remote providers, and keeps the history of recent searches.
type Repository struct {
	store     Store
	providers []Provider
	events    EventPublisher
	now       func() time.Time

	mu    sync.Mutex
	dirty bool
}

// RepositoryOption customizes a Repository.
type RepositoryOption func(*Repository)

// WithEvents publishes a SearchEvent for every remote fetch.
func WithEvents(p EventPublisher) RepositoryOption {
	return func(r *Repository) { r.events = p }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a new Repository.
func NewRepository(store Store, providers []Provider, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:     store,
		providers: providers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RefreshWeather makes the next GetWeather bypass the cache.
func (r *Repository) RefreshWeather() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

func (r *Repository) takeDirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.dirty
	r.dirty = false
	return d
}

// GetWeather returns weather for s. A nil Weather with a nil error means no
// provider knows the place. Every answered search is recorded in history.
func (r *Repository) GetWeather(ctx context.Context, s Search) (*Weather, error) {
	if !s.Valid() {
		return nil, ErrInvalidSearch
	}

	if !r.takeDirty() {
		cached, err := r.store.GetWeather(ctx, s.Key())
		switch {
		case err == nil:
			log.Printf("DEBUG: cache hit for %s", s.Key())
			r.recordSearch(ctx, s)
			cached.Search = s
			return &cached, nil
		case !errors.Is(err, ErrNotFound):
			// Proceed to fetch fresh data on cache error.
			log.Printf("ERROR: cache read failed for %s: %v", s.Key(), err)
		}
	}

	w, err := r.fetchRemote(ctx, s)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, s, w != nil)
	if w == nil {
		return nil, nil
	}

	if err := r.store.SaveWeather(ctx, *w); err != nil {
		log.Printf("ERROR: failed to cache weather for %s: %v", s.Key(), err)
	}
	r.recordSearch(ctx, s)
	return w, nil
}

// Warm refetches weather for s and caches it without touching history.
func (r *Repository) Warm(ctx context.Context, s Search) error {
	if !s.Valid() {
		return ErrInvalidSearch
	}
	w, err := r.fetchRemote(ctx, s)
	if err != nil {
		return err
	}
	if w == nil {
		return ErrNotFound
	}
	return r.store.SaveWeather(ctx, *w)
}

// RecentSearches returns the search history, most recent first.
func (r *Repository) RecentSearches(ctx context.Context) ([]Search, error) {
	searches, err := r.store.RecentSearches(ctx)
	if err != nil {
		return nil, fmt.Errorf("read recent searches: %w", err)
	}
	if searches == nil {
		searches = []Search{}
	}
	return searches, nil
}

// DeleteRecentSearch removes the history entry stamped with ts.
func (r *Repository) DeleteRecentSearch(ctx context.Context, ts time.Time) error {
	if err := r.store.DeleteSearch(ctx, ts); err != nil {
		return fmt.Errorf("delete recent search: %w", err)
	}
	return nil
}

// recordSearch moves s to the top of history, stamped with the current time.
func (r *Repository) recordSearch(ctx context.Context, s Search) {
	s.Timestamp = r.now().UTC()
	if err := r.store.SaveSearch(ctx, s); err != nil {
		log.Printf("ERROR: failed to record search %s: %v", s.Key(), err)
	}
}

func (r *Repository) publish(ctx context.Context, s Search, found bool) {
	if r.events == nil {
		return
	}
	ev := SearchEvent{Search: s, Found: found, At: r.now().UTC()}
	if err := r.events.PublishSearch(ctx, ev); err != nil {
		log.Printf("ERROR: failed to publish search event for %s: %v", s.Key(), err)
	}
}

// fetchRemote fetches from all providers concurrently and aggregates the
// successful readings. It returns (nil, nil) when every provider that could
// serve the search reported that it matched nothing.
func (r *Repository) fetchRemote(ctx context.Context, s Search) (*Weather, error) {
	if len(r.providers) == 0 {
		log.Printf("ERROR: No providers available to fetch weather data for %s", s.Key())
		return nil, fmt.Errorf("no weather providers configured")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []ProviderReading
		errs     []error
	)

	log.Printf("DEBUG: fetching %s from %d providers", s.Key(), len(r.providers))

	for _, p := range r.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			reading, err := p.Fetch(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Log and continue; we want partial success when possible.
				log.Printf("provider %s fetch failed for %s: %v", p.Name(), s.Key(), err)
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				return
			}
			readings = append(readings, reading)
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(readings) == 0 {
		if allNotFound(errs) {
			log.Printf("INFO: no provider matched %s", s.Key())
			return nil, nil
		}
		return nil, fmt.Errorf("fetch weather for %q: %w", s.String(), errors.Join(errs...))
	}

	w := AggregateReadings(s, readings)
	w.FetchedAt = r.now().UTC()
	return &w, nil
}

// allNotFound ignores providers that do not serve the search kind, but
// needs at least one provider to have actually looked.
func allNotFound(errs []error) bool {
	found := false
	for _, err := range errs {
		switch {
		case errors.Is(err, ErrUnsupportedSearch):
		case errors.Is(err, ErrNotFound):
			found = true
		default:
			return false
		}
	}
	return found
}
