package weather

import (
	"context"
	"time"
)

// ProviderReading represents a single provider's normalized reading
// that can be aggregated into a Weather.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time
	Place        string

	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
	PressureHpa  float64
	PrecipMm     float64
	Condition    Condition
}

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
// Fetch returns an error wrapping ErrNotFound when the provider has no match
// for the search.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, s Search) (ProviderReading, error)
}

// Store is the contract the local data sources (memory, SQLite, Redis) satisfy.
// GetWeather returns ErrNotFound on a cache miss or an expired entry.
// Stores enforce their own history retention on SaveSearch.
type Store interface {
	SaveWeather(ctx context.Context, w Weather) error
	GetWeather(ctx context.Context, key string) (Weather, error)

	// SaveSearch records s, replacing any earlier entry with the same Key.
	SaveSearch(ctx context.Context, s Search) error
	// RecentSearches returns the retained searches, most recent first.
	RecentSearches(ctx context.Context) ([]Search, error)
	// DeleteSearch removes the entry stamped with ts; unknown ts is not an error.
	DeleteSearch(ctx context.Context, ts time.Time) error
}

// SearchEvent is emitted once per remote fetch.
type SearchEvent struct {
	Search Search
	Found  bool
	At     time.Time
}

// EventPublisher receives search events. Implementations must not block the
// caller for long; failures are logged, not returned to the user.
type EventPublisher interface {
	PublishSearch(ctx context.Context, ev SearchEvent) error
}
