// Package location supplies the device's last known position.
package location

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// Static reports a fixed position, or none when constructed with nil.
type Static struct {
	coords *weather.Coordinates
}

// NewStatic returns a provider for c; a nil c means no location is known.
func NewStatic(c *weather.Coordinates) *Static {
	if c == nil {
		return &Static{}
	}
	return &Static{coords: &weather.Coordinates{Lat: c.Lat, Lon: c.Lon}}
}

// LastLocation returns the configured position or nil.
func (s *Static) LastLocation(ctx context.Context) (*weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.coords == nil {
		return nil, nil
	}
	c := *s.coords
	return &c, nil
}

// Address resolves a street address once and then reports it as the last
// known position. A failed lookup is retried on the next call.
type Address struct {
	address  string
	geocoder geocode.Geocoder

	mu     sync.Mutex
	coords *weather.Coordinates
}

// NewAddress creates a provider for a configured home address.
func NewAddress(address string, g geocode.Geocoder) *Address {
	return &Address{address: address, geocoder: g}
}

// LastLocation geocodes the address on first use. An address nothing
// matches is reported as no location.
func (a *Address) LastLocation(ctx context.Context) (*weather.Coordinates, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.coords != nil {
		c := *a.coords
		return &c, nil
	}
	if a.address == "" || a.geocoder == nil {
		return nil, nil
	}

	c, err := a.geocoder.Geocode(ctx, geocoder.Address{Street: a.address})
	if err != nil {
		if errors.Is(err, weather.ErrNotFound) {
			log.Printf("INFO: address %q did not resolve to a location", a.address)
			return nil, nil
		}
		return nil, fmt.Errorf("locate %q: %w", a.address, err)
	}
	a.coords = &c
	out := c
	return &out, nil
}
