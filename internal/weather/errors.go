package weather

import "errors"

var (
	// ErrNotFound is returned when no weather is known for a search, either
	// because nothing is cached or because no provider matched the query.
	ErrNotFound = errors.New("no weather data for search")

	// ErrInvalidSearch is returned for a search without a payload.
	ErrInvalidSearch = errors.New("invalid search")

	// ErrUnsupportedSearch is returned by a provider that cannot serve a kind
	// of search at all, such as a text search without a geocoder.
	ErrUnsupportedSearch = errors.New("search kind not supported")
)
