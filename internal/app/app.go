// Package app assembles the weather repository and its collaborators from
// configuration. Both binaries share it.
package app

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/events"
	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/location"
	"github.com/i474232898/weather-lookup/internal/presenter"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

// Components are the long-lived pieces built from an AppConfig.
type Components struct {
	Store      weather.Store
	Providers  []weather.Provider
	Repository *weather.Repository
	Location   presenter.LocationProvider

	closers []func() error
}

// Build wires storage, providers, events and the location source. Call Close
// when done, even after an error.
func Build(cfg *config.AppConfig) (*Components, error) {
	c := &Components{}

	st, err := c.openStore(cfg)
	if err != nil {
		return c, err
	}
	c.Store = st

	var geo geocode.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geo = geocode.NewGoogle(cfg.GeocoderAPIKey)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	c.Providers = buildProviders(cfg, httpClient, geo)

	publisher, err := c.openEvents(cfg)
	if err != nil {
		return c, err
	}

	c.Repository = weather.NewRepository(st, c.Providers, weather.WithEvents(publisher))
	c.Location = buildLocation(cfg, geo)
	return c, nil
}

// Close releases every resource Build opened, most recent first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Components) openStore(cfg *config.AppConfig) (weather.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath, cfg.StoreMaxHistory, cfg.StoreMaxAge)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, s.Close)
		log.Printf("INFO: using sqlite store at %s", cfg.SQLitePath)
		return s, nil
	case config.BackendRedis:
		client, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		s := store.NewRedisStore(client, cfg.StoreMaxHistory, cfg.StoreMaxAge)
		c.closers = append(c.closers, s.Close)
		log.Printf("INFO: using redis store at %s", cfg.RedisAddr)
		return s, nil
	case config.BackendMemory, "":
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (c *Components) openEvents(cfg *config.AppConfig) (weather.EventPublisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}, nil
	}
	producer, err := events.NewKafkaProducer(cfg.KafkaBrokers)
	if err != nil {
		return nil, err
	}
	pub := events.NewKafkaPublisher(producer, cfg.KafkaTopic)
	c.closers = append(c.closers, pub.Close)
	log.Printf("INFO: publishing search events to %s", cfg.KafkaTopic)
	return pub, nil
}

// buildProviders returns every provider the configuration has credentials
// for. Open-Meteo needs none.
func buildProviders(cfg *config.AppConfig, client *http.Client, geo geocode.Geocoder) []weather.Provider {
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey, cfg.DefaultCountry))
	} else {
		log.Printf("INFO: OPENWEATHER_API_KEY not set; skipping openweather")
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey))
	} else {
		log.Printf("INFO: WEATHERAPI_API_KEY not set; skipping weatherapi")
	}
	if geo == nil {
		log.Printf("INFO: GEOCODER_API_KEY not set; openmeteo serves coordinate searches only")
	}
	provs = append(provs, providers.NewOpenMeteoProvider(client, geo, cfg.DefaultCountry))
	return provs
}

func buildLocation(cfg *config.AppConfig, geo geocode.Geocoder) presenter.LocationProvider {
	if c := cfg.Coordinates(); c != nil {
		return location.NewStatic(c)
	}
	if cfg.LocationAddress != "" && geo != nil {
		return location.NewAddress(cfg.LocationAddress, geo)
	}
	return location.NewStatic(nil)
}
