package presenter

import (
	"context"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// View renders what the presenter delivers. All methods are called on the
// UI execution context.
type View interface {
	SetLoadingIndicator(active bool)
	ShowWeather(w *weather.Weather, animate bool)
	ShowEmptyWeather()
	ShowError(message string)
	PopulateRecentSearches(searches []weather.Search)
}

// Repository is the weather data source the presenter reads from.
type Repository interface {
	// GetWeather returns nil weather and a nil error when nothing matched.
	GetWeather(ctx context.Context, s weather.Search) (*weather.Weather, error)
	// RefreshWeather makes the next GetWeather skip the cache.
	RefreshWeather()
	RecentSearches(ctx context.Context) ([]weather.Search, error)
	DeleteRecentSearch(ctx context.Context, ts time.Time) error
}

// LocationProvider yields the device's last known location, or nil.
type LocationProvider interface {
	LastLocation(ctx context.Context) (*weather.Coordinates, error)
}

// Executor runs functions on the UI execution context.
type Executor interface {
	Post(fn func()) bool
}

// ViewState is one snapshot delivered to the view.
type ViewState struct {
	Weather  *weather.Weather
	Searches []weather.Search
}
