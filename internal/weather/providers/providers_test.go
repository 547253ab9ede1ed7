package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/weather"
)

func fastRetries(cfg *HTTPClientConfig) {
	cfg.Backoff.InitialInterval = time.Millisecond
	cfg.Backoff.MaxInterval = 2 * time.Millisecond
}

func textSearch(t *testing.T, q string) weather.Search {
	t.Helper()
	s, ok := weather.NewTextSearch(q, time.Now())
	require.True(t, ok)
	return s
}

func TestOpenWeatherZipCodeSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "90210,us", r.URL.Query().Get("zip"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Empty(t, r.URL.Query().Get("q"))
		w.Write([]byte(`{
			"dt": 1714564800,
			"name": "Beverly Hills",
			"main": {"temp": 24.5, "humidity": 40, "pressure": 1012},
			"wind": {"speed": 3.1},
			"rain": {"3h": 0.6},
			"weather": [{"main": "Drizzle"}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret", "us")
	p.baseURL = srv.URL

	reading, err := p.Fetch(context.Background(), textSearch(t, "90210"))
	require.NoError(t, err)
	assert.Equal(t, "openweathermap", reading.ProviderName)
	assert.Equal(t, "Beverly Hills", reading.Place)
	assert.Equal(t, 24.5, reading.TemperatureC)
	assert.Equal(t, 0.6, reading.PrecipMm)
	assert.Equal(t, weather.ConditionRain, reading.Condition)
	assert.Equal(t, time.Unix(1714564800, 0).UTC(), reading.Timestamp)
}

func TestOpenWeatherTextAndCoordinateSearch(t *testing.T) {
	seen := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.URL.RawQuery
		w.Write([]byte(`{"main": {"temp": 1}, "weather": [{"main": "Snow"}]}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret", "")
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), textSearch(t, "Oslo"))
	require.NoError(t, err)
	reading, err := p.Fetch(context.Background(), weather.NewCoordinateSearch(weather.Coordinates{Lat: 59.91, Lon: 10.75}, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionSnow, reading.Condition)

	assert.Contains(t, <-seen, "q=Oslo")
	coords := <-seen
	assert.Contains(t, coords, "lat=59.910000")
	assert.Contains(t, coords, "lon=10.750000")
}

func TestOpenWeatherUnknownPlaceIsNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret", "")
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), textSearch(t, "Atlantis"))
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load(), "not-found must not be retried")
}

func TestOpenWeatherRequiresKey(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, "", "")
	_, err := p.Fetch(context.Background(), textSearch(t, "Oslo"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, weather.ErrNotFound)
}

func TestWeatherAPICoordinateSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "43.650000,-79.380000", r.URL.Query().Get("q"))
		w.Write([]byte(`{
			"location": {"name": "Toronto", "region": "Ontario", "localtime_epoch": 1714564800},
			"current": {
				"temp_c": 12, "humidity": 80, "wind_kph": 36,
				"pressure_mb": 1008, "precip_mm": 1.2,
				"condition": {"text": "Light rain shower"}
			}
		}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret")
	p.baseURL = srv.URL

	reading, err := p.Fetch(context.Background(), weather.NewCoordinateSearch(weather.Coordinates{Lat: 43.65, Lon: -79.38}, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "Toronto, Ontario", reading.Place)
	assert.InDelta(t, 10, reading.WindSpeedMS, 1e-9)
	assert.Equal(t, weather.ConditionRain, reading.Condition)
	assert.Equal(t, time.Unix(1714564800, 0).UTC(), reading.Timestamp)
}

func TestWeatherAPIRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"current": {"temp_c": 5, "condition": {"text": "Overcast"}}}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret")
	p.baseURL = srv.URL
	fastRetries(&p.httpCfg)

	reading, err := p.Fetch(context.Background(), textSearch(t, "London"))
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionCloudy, reading.Condition)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWeatherAPIGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret")
	p.baseURL = srv.URL
	fastRetries(&p.httpCfg)

	_, err := p.Fetch(context.Background(), textSearch(t, "London"))
	assert.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, int32(4), calls.Load())
}

type fakeGeocoder struct {
	coords weather.Coordinates
	err    error
	asked  []geocoder.Address
}

func (g *fakeGeocoder) Geocode(_ context.Context, addr geocoder.Address) (weather.Coordinates, error) {
	g.asked = append(g.asked, addr)
	return g.coords, g.err
}

func openMeteoServer(t *testing.T, wantLat string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantLat, r.URL.Query().Get("latitude"))
		assert.Equal(t, "ms", r.URL.Query().Get("wind_speed_unit"))
		w.Write([]byte(`{"current": {
			"time": 1714564800, "temperature_2m": 15.5, "relative_humidity_2m": 55,
			"precipitation": 0, "weather_code": 2, "surface_pressure": 1015, "wind_speed_10m": 4.2
		}}`))
	}))
}

func TestOpenMeteoGeocodesTextSearch(t *testing.T) {
	srv := openMeteoServer(t, "48.856600")
	defer srv.Close()

	geo := &fakeGeocoder{coords: weather.Coordinates{Lat: 48.8566, Lon: 2.3522}}
	p := NewOpenMeteoProvider(srv.Client(), geo, "FR")
	p.baseURL = srv.URL

	reading, err := p.Fetch(context.Background(), textSearch(t, "Paris"))
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionCloudy, reading.Condition)
	assert.Equal(t, 4.2, reading.WindSpeedMS)
	require.Len(t, geo.asked, 1)
	assert.Equal(t, "Paris", geo.asked[0].City)
	assert.Equal(t, "FR", geo.asked[0].Country)
}

func TestOpenMeteoCoordinateSearchSkipsGeocoder(t *testing.T) {
	srv := openMeteoServer(t, "10.000000")
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), nil, "")
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), weather.NewCoordinateSearch(weather.Coordinates{Lat: 10, Lon: 20}, time.Now()))
	require.NoError(t, err)
}

func TestOpenMeteoUnresolvablePlace(t *testing.T) {
	geo := &fakeGeocoder{err: weather.ErrNotFound}
	p := NewOpenMeteoProvider(http.DefaultClient, geo, "")

	_, err := p.Fetch(context.Background(), textSearch(t, "Atlantis"))
	assert.ErrorIs(t, err, weather.ErrNotFound)

	zip := textSearch(t, "90210")
	_, _ = p.Fetch(context.Background(), zip)
	require.Len(t, geo.asked, 2)
	assert.Equal(t, "90210", geo.asked[1].PostalCode)
}

func TestOpenMeteoWithoutGeocoder(t *testing.T) {
	p := NewOpenMeteoProvider(http.DefaultClient, nil, "")

	_, err := p.Fetch(context.Background(), textSearch(t, "Paris"))
	assert.ErrorIs(t, err, weather.ErrUnsupportedSearch)
	assert.NotErrorIs(t, err, weather.ErrNotFound)
	assert.NotContains(t, err.Error(), "openmeteo")
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := defaultHTTPConfig(srv.Client())
	cfg.Backoff.MaxRetries = 0
	cb := newCircuitBreaker("test")
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, srv.URL, nil) }

	for i := 0; i < 6; i++ {
		_, err := doRequestWithResilience(context.Background(), cfg, cb, build)
		assert.ErrorIs(t, err, errServerError)
	}
	_, err := doRequestWithResilience(context.Background(), cfg, cb, build)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(6), calls.Load())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := defaultHTTPConfig(srv.Client())
	cb := newCircuitBreaker("test")
	build := func() (*http.Request, error) { return http.NewRequest(http.MethodGet, srv.URL, nil) }

	for i := 0; i < 10; i++ {
		_, err := doRequestWithResilience(context.Background(), cfg, cb, build)
		require.ErrorIs(t, err, weather.ErrNotFound)
	}
}

func TestResilienceRejectsMissingClient(t *testing.T) {
	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{}, newCircuitBreaker("x"), nil)
	assert.True(t, errors.Is(err, errNoHTTPClient))
}

func TestConditionMapping(t *testing.T) {
	assert.Equal(t, weather.ConditionClear, mapOpenMeteoCondition(0))
	assert.Equal(t, weather.ConditionMist, mapOpenMeteoCondition(45))
	assert.Equal(t, weather.ConditionRain, mapOpenMeteoCondition(81))
	assert.Equal(t, weather.ConditionSnow, mapOpenMeteoCondition(86))
	assert.Equal(t, weather.ConditionStorm, mapOpenMeteoCondition(95))
	assert.Equal(t, weather.ConditionUnknown, mapOpenMeteoCondition(40))

	assert.Equal(t, weather.ConditionMist, mapOpenWeatherCondition("Haze"))
	assert.Equal(t, weather.ConditionUnknown, mapOpenWeatherCondition("Tornado"))

	assert.Equal(t, weather.ConditionStorm, mapWeatherAPICondition("Patchy light rain with thunder"))
	assert.Equal(t, weather.ConditionSnow, mapWeatherAPICondition("Moderate or heavy sleet"))
	assert.Equal(t, weather.ConditionClear, mapWeatherAPICondition("Sunny"))
	assert.Equal(t, weather.ConditionUnknown, mapWeatherAPICondition(""))
}
