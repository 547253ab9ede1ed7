package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	HTTPTimeout time.Duration `validate:"gt=0"`

	// RefreshInterval controls how often the API server re-warms recent searches.
	RefreshInterval time.Duration `validate:"gte=0"`
	WarmSearches    int           `validate:"gte=0"`

	StoreBackend    string        `validate:"oneof=memory sqlite redis"`
	StoreMaxHistory int           `validate:"gte=0"` // recent searches kept (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // cached weather lifetime (0 = forever)
	SQLitePath      string        `validate:"required_if=StoreBackend sqlite"`
	RedisAddr       string        `validate:"required_if=StoreBackend redis"`
	RedisPassword   string
	RedisDB         int `validate:"gte=0"`

	KafkaBrokers []string
	KafkaTopic   string `validate:"required_with=KafkaBrokers"`

	// Device location: fixed coordinates win over an address.
	LocationLat     *float64 `validate:"omitempty,min=-90,max=90"`
	LocationLon     *float64 `validate:"omitempty,min=-180,max=180"`
	LocationAddress string

	DefaultCountry string `validate:"omitempty,len=2"`
	Port           string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the process
// environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	cfg.WarmSearches = getenvInt("WARM_SEARCHES", 5)

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", BackendMemory))
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 10)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "1h"); err != nil {
		return nil, err
	}
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "weather.db")
	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaTopic = getenvDefault("KAFKA_TOPIC", "weather.searches")

	if cfg.LocationLat, err = getenvFloat("LOCATION_LAT"); err != nil {
		return nil, err
	}
	if cfg.LocationLon, err = getenvFloat("LOCATION_LON"); err != nil {
		return nil, err
	}
	if (cfg.LocationLat == nil) != (cfg.LocationLon == nil) {
		return nil, fmt.Errorf("LOCATION_LAT and LOCATION_LON must be set together")
	}
	cfg.LocationAddress = os.Getenv("LOCATION_ADDRESS")

	cfg.DefaultCountry = strings.ToUpper(os.Getenv("DEFAULT_COUNTRY"))
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Coordinates returns the configured fixed location, or nil.
func (c *AppConfig) Coordinates() *weather.Coordinates {
	if c.LocationLat == nil || c.LocationLon == nil {
		return nil
	}
	return &weather.Coordinates{Lat: *c.LocationLat, Lon: *c.LocationLon}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string) (*float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
