package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/weather"
)

type storeFactory func(t *testing.T, maxHistory int, maxAge time.Duration) weather.Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, maxHistory int, maxAge time.Duration) weather.Store {
			return NewMemoryStore(maxHistory, maxAge)
		},
		"sqlite": func(t *testing.T, maxHistory int, maxAge time.Duration) weather.Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "weather.db"), maxHistory, maxAge)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"redis": func(t *testing.T, maxHistory int, maxAge time.Duration) weather.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisStore(client, maxHistory, maxAge)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func search(q string, offset time.Duration) weather.Search {
	s, _ := weather.NewTextSearch(q, base.Add(offset))
	return s
}

func TestStoreWeatherRoundTrip(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t, 10, time.Hour)

			_, err := st.GetWeather(ctx, "text:paris")
			assert.ErrorIs(t, err, ErrNotFound)

			w := weather.Weather{
				Search:      search("Paris", 0),
				Place:       "Paris, FR",
				Temperature: 21.5,
				Condition:   weather.ConditionClear,
				FetchedAt:   time.Now().UTC(),
			}
			require.NoError(t, st.SaveWeather(ctx, w))

			got, err := st.GetWeather(ctx, w.Search.Key())
			require.NoError(t, err)
			assert.Equal(t, "Paris, FR", got.Place)
			assert.Equal(t, 21.5, got.Temperature)
			assert.Equal(t, weather.KindText, got.Search.Kind)

			w.Temperature = 23
			require.NoError(t, st.SaveWeather(ctx, w))
			got, err = st.GetWeather(ctx, w.Search.Key())
			require.NoError(t, err)
			assert.Equal(t, 23.0, got.Temperature)
		})
	}
}

func TestStoreRecentSearches(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t, 3, time.Hour)

			got, err := st.RecentSearches(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)

			require.NoError(t, st.SaveSearch(ctx, search("Paris", 0)))
			require.NoError(t, st.SaveSearch(ctx, search("90210", time.Minute)))
			require.NoError(t, st.SaveSearch(ctx, search("Oslo", 2*time.Minute)))
			// Re-searching moves the entry to the top instead of duplicating it.
			require.NoError(t, st.SaveSearch(ctx, search("paris", 3*time.Minute)))

			got, err = st.RecentSearches(ctx)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "paris", got[0].Query)
			assert.Equal(t, "Oslo", got[1].Query)
			assert.Equal(t, weather.KindZipCode, got[2].Kind)

			// A fourth distinct search pushes out the oldest.
			require.NoError(t, st.SaveSearch(ctx, search("Rome", 4*time.Minute)))
			got, err = st.RecentSearches(ctx)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, []string{"Rome", "paris", "Oslo"}, queries(got))
		})
	}
}

func TestStoreDeleteSearch(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t, 10, time.Hour)

			oslo := search("Oslo", 0)
			rome := search("Rome", time.Minute)
			require.NoError(t, st.SaveSearch(ctx, oslo))
			require.NoError(t, st.SaveSearch(ctx, rome))

			require.NoError(t, st.DeleteSearch(ctx, oslo.Timestamp))
			// Unknown timestamps are ignored.
			require.NoError(t, st.DeleteSearch(ctx, base.Add(time.Hour)))

			got, err := st.RecentSearches(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"Rome"}, queries(got))
			assert.True(t, got[0].Timestamp.Equal(rome.Timestamp))
		})
	}
}

func TestStoreCoordinateSearch(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t, 10, time.Hour)

			s := weather.NewCoordinateSearch(weather.Coordinates{Lat: 43.6532, Lon: -79.3832}, base)
			require.NoError(t, st.SaveSearch(ctx, s))

			got, err := st.RecentSearches(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.NotNil(t, got[0].Coords)
			assert.Equal(t, s.Key(), got[0].Key())
		})
	}
}

func TestMemoryStoreExpiresWeather(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(10, time.Minute)

	w := weather.Weather{Search: search("Paris", 0), FetchedAt: time.Now().Add(-2 * time.Minute)}
	require.NoError(t, st.SaveWeather(ctx, w))

	_, err := st.GetWeather(ctx, w.Search.Key())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreExpiresWeather(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "weather.db"), 10, time.Minute)
	require.NoError(t, err)
	defer st.Close()

	w := weather.Weather{Search: search("Paris", 0), FetchedAt: time.Now().Add(-2 * time.Minute)}
	require.NoError(t, st.SaveWeather(ctx, w))

	_, err = st.GetWeather(ctx, w.Search.Key())
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, st.Ping(ctx))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "weather.db")

	st, err := NewSQLiteStore(path, 10, time.Hour)
	require.NoError(t, err)
	require.NoError(t, st.SaveSearch(ctx, search("Paris", 0)))
	require.NoError(t, st.Close())

	st, err = NewSQLiteStore(path, 10, time.Hour)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.RecentSearches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris"}, queries(got))
}

func TestRedisStoreExpiresWeather(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	st := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 10, time.Minute)
	defer st.Close()

	w := weather.Weather{Search: search("Paris", 0), FetchedAt: time.Now()}
	require.NoError(t, st.SaveWeather(ctx, w))

	_, err := st.GetWeather(ctx, w.Search.Key())
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = st.GetWeather(ctx, w.Search.Key())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(addr, "", 0)
	assert.Error(t, err)
}

func queries(searches []weather.Search) []string {
	out := make([]string, 0, len(searches))
	for _, s := range searches {
		out = append(out, s.Query)
	}
	return out
}
