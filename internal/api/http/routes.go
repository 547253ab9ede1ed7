package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

// Repository is the part of weather.Repository the API serves.
type Repository interface {
	GetWeather(ctx context.Context, s weather.Search) (*weather.Weather, error)
	Warm(ctx context.Context, s weather.Search) error
	RecentSearches(ctx context.Context) ([]weather.Search, error)
	DeleteRecentSearch(ctx context.Context, ts time.Time) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, repo Repository) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		var req weatherQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		search, err := req.toSearch(time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx := c.UserContext()
		if req.Refresh {
			// A shared dirty flag would leak into concurrent requests, so
			// refresh the cache entry directly instead.
			if err := repo.Warm(ctx, search); err != nil {
				return lookupError(err)
			}
		}

		w, err := repo.GetWeather(ctx, search)
		if err != nil {
			return lookupError(err)
		}
		if w == nil {
			return fiber.NewError(fiber.StatusNotFound, "no weather data for requested search")
		}
		return c.JSON(w)
	})

	v1.Get("/searches", func(c *fiber.Ctx) error {
		searches, err := repo.RecentSearches(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read recent searches")
		}
		return c.JSON(fiber.Map{"searches": searches})
	})

	v1.Delete("/searches/:timestamp", func(c *fiber.Ctx) error {
		ts, err := parseTime(c.Params("timestamp"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := repo.DeleteRecentSearch(c.UserContext(), ts); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to delete recent search")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// ErrorHandler renders errors as JSON, keeping the status of *fiber.Error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func lookupError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no weather data for requested search")
	case errors.Is(err, weather.ErrInvalidSearch), errors.Is(err, weather.ErrUnsupportedSearch):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch weather data")
	}
}

// weatherQuery holds query parameters for the weather endpoint: either q or
// a lat/lon pair.
type weatherQuery struct {
	Q       string   `validate:"max=100"`
	Lat     *float64 `validate:"omitempty,min=-90,max=90"`
	Lon     *float64 `validate:"omitempty,min=-180,max=180"`
	Refresh bool
}

func (q *weatherQuery) bind(c *fiber.Ctx) error {
	q.Q = c.Query("q")
	q.Refresh = c.QueryBool("refresh", false)

	var err error
	if q.Lat, err = parseCoordinate(c.Query("lat")); err != nil {
		return errors.New("invalid lat")
	}
	if q.Lon, err = parseCoordinate(c.Query("lon")); err != nil {
		return errors.New("invalid lon")
	}
	if (q.Lat == nil) != (q.Lon == nil) {
		return errors.New("lat and lon must be given together")
	}
	if (q.Q == "") == (q.Lat == nil) {
		return errors.New("provide either q or lat and lon")
	}
	return validate.Struct(q)
}

func (q weatherQuery) toSearch(now time.Time) (weather.Search, error) {
	if q.Lat != nil && q.Lon != nil {
		return weather.NewCoordinateSearch(weather.Coordinates{Lat: *q.Lat, Lon: *q.Lon}, now), nil
	}
	s, ok := weather.NewTextSearch(q.Q, now)
	if !ok {
		return weather.Search{}, errors.New("q must not be blank")
	}
	return s, nil
}

func parseCoordinate(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// parseTime parses an RFC3339 timestamp as listed by GET /searches. History
// entries carry sub-second precision, so coarser forms such as Unix seconds
// would never match one.
func parseTime(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.New("invalid time format; use the RFC3339 timestamp from the search history")
	}
	return ts, nil
}
