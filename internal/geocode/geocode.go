// Package geocode resolves free-text places and zip codes to coordinates.
package geocode

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-lookup/internal/common"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// Geocoder turns an address into coordinates. Implementations return an
// error wrapping weather.ErrNotFound when nothing matches.
type Geocoder interface {
	Geocode(ctx context.Context, addr geocoder.Address) (weather.Coordinates, error)
}

// SearchAddress builds the address to geocode for a text or zip-code search.
func SearchAddress(s weather.Search, country string) geocoder.Address {
	addr := geocoder.Address{Country: country}
	if s.Kind == weather.KindZipCode {
		addr.PostalCode = s.Query
	} else {
		addr.City = s.Query
	}
	return addr
}

// Resolve returns the coordinates a search refers to, geocoding text and
// zip-code searches through g.
func Resolve(ctx context.Context, g Geocoder, s weather.Search, country string) (weather.Coordinates, error) {
	if s.Kind == weather.KindLatLon && s.Coords != nil {
		return *s.Coords, nil
	}
	if g == nil {
		return weather.Coordinates{}, fmt.Errorf("geocoding is not configured: %w", weather.ErrUnsupportedSearch)
	}
	return g.Geocode(ctx, SearchAddress(s, country))
}

// Google geocodes through the Google Geocoding API.
type Google struct {
	apiKey string
}

// geocoder keeps its API key in a package variable; serialize access to it.
var googleMu sync.Mutex

// NewGoogle creates a Google geocoder.
func NewGoogle(apiKey string) *Google {
	return &Google{apiKey: apiKey}
}

func (g *Google) Geocode(ctx context.Context, addr geocoder.Address) (weather.Coordinates, error) {
	if g.apiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("geocoder api key is not configured")
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		googleMu.Lock()
		defer googleMu.Unlock()
		geocoder.ApiKey = g.apiKey
		loc, err := geocoder.Geocoding(addr)
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Coordinates{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if common.HasAnyFold(r.err.Error(), "ZERO_RESULTS", "no results") {
				return weather.Coordinates{}, fmt.Errorf("%w: %v", weather.ErrNotFound, r.err)
			}
			return weather.Coordinates{}, fmt.Errorf("geocode: %w", r.err)
		}
		return weather.Coordinates{Lat: r.loc.Latitude, Lon: r.loc.Longitude}, nil
	}
}
