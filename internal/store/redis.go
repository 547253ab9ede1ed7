package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	redisCachePrefix  = "weather:cache:"
	redisSearchIndex  = "weather:searches"
	redisSearchValues = "weather:searches:data"
)

// RedisStore keeps cached weather and the search history in Redis so several
// processes can share them. Cached weather expires through key TTLs; the
// history is a sorted set scored by search timestamp (microseconds, which a
// float64 score holds exactly) plus a hash of encoded searches.
type RedisStore struct {
	client     *redis.Client
	maxHistory int
	maxAge     time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, maxHistory int, maxAge time.Duration) *RedisStore {
	return &RedisStore{client: client, maxHistory: maxHistory, maxAge: maxAge}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SaveWeather(ctx context.Context, w weather.Weather) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode weather: %w", err)
	}
	if err := s.client.Set(ctx, redisCachePrefix+w.Search.Key(), data, s.maxAge).Err(); err != nil {
		return fmt.Errorf("save weather %s: %w", w.Search.Key(), err)
	}
	return nil
}

func (s *RedisStore) GetWeather(ctx context.Context, key string) (weather.Weather, error) {
	val, err := s.client.Get(ctx, redisCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return weather.Weather{}, ErrNotFound
	}
	if err != nil {
		return weather.Weather{}, fmt.Errorf("read weather %s: %w", key, err)
	}

	var w weather.Weather
	if err := json.Unmarshal(val, &w); err != nil {
		return weather.Weather{}, fmt.Errorf("decode weather %s: %w", key, err)
	}
	return w, nil
}

func (s *RedisStore) SaveSearch(ctx context.Context, search weather.Search) error {
	data, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}

	key := search.Key()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisSearchIndex, redis.Z{Score: searchScore(search.Timestamp), Member: key})
		pipe.HSet(ctx, redisSearchValues, key, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save search %s: %w", key, err)
	}

	if s.maxHistory <= 0 {
		return nil
	}
	stale, err := s.client.ZRevRange(ctx, redisSearchIndex, int64(s.maxHistory), -1).Result()
	if err != nil {
		return fmt.Errorf("trim recent searches: %w", err)
	}
	return s.remove(ctx, stale)
}

func (s *RedisStore) RecentSearches(ctx context.Context) ([]weather.Search, error) {
	stop := int64(-1)
	if s.maxHistory > 0 {
		stop = int64(s.maxHistory - 1)
	}
	keys, err := s.client.ZRevRange(ctx, redisSearchIndex, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]weather.Search, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.client.HMGet(ctx, redisSearchValues, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			log.Printf("WARN: search %s has no stored value", keys[i])
			continue
		}
		var search weather.Search
		if err := json.Unmarshal([]byte(raw), &search); err != nil {
			log.Printf("WARN: skipping undecodable search %s: %v", keys[i], err)
			continue
		}
		out = append(out, search)
	}
	return out, nil
}

func (s *RedisStore) DeleteSearch(ctx context.Context, ts time.Time) error {
	score := strconv.FormatFloat(searchScore(ts), 'f', -1, 64)
	keys, err := s.client.ZRangeByScore(ctx, redisSearchIndex, &redis.ZRangeBy{Min: score, Max: score}).Result()
	if err != nil {
		return err
	}
	return s.remove(ctx, keys)
}

func (s *RedisStore) remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, redisSearchIndex, members...)
		pipe.HDel(ctx, redisSearchValues, keys...)
		return nil
	})
	return err
}

func searchScore(ts time.Time) float64 {
	return float64(ts.UnixMicro())
}
