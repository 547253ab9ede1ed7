package weather

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QueryKind classifies what a Search asks for.
type QueryKind string

const (
	KindText    QueryKind = "text"
	KindZipCode QueryKind = "zip"
	KindLatLon  QueryKind = "latlon"
)

// zipCodeLength is the length of an all-digit query treated as a zip code.
const zipCodeLength = 5

// Search is a single user-issued weather query. The zero value is not a
// valid search; use NewTextSearch or NewCoordinateSearch.
type Search struct {
	Kind      QueryKind    `json:"kind"`
	Query     string       `json:"query,omitempty"`
	Coords    *Coordinates `json:"coords,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// ClassifyQuery returns KindZipCode for a fixed-length all-digit query and
// KindText for anything else.
func ClassifyQuery(q string) QueryKind {
	if len(q) != zipCodeLength {
		return KindText
	}
	for i := 0; i < len(q); i++ {
		if q[i] < '0' || q[i] > '9' {
			return KindText
		}
	}
	return KindZipCode
}

// NewTextSearch classifies text and builds a Search stamped with now.
// ok is false when text is empty after trimming whitespace.
func NewTextSearch(text string, now time.Time) (Search, bool) {
	q := strings.TrimSpace(text)
	if q == "" {
		return Search{}, false
	}
	return Search{
		Kind:      ClassifyQuery(q),
		Query:     q,
		Timestamp: now.UTC(),
	}, true
}

// NewCoordinateSearch builds a lat/lon Search stamped with now.
func NewCoordinateSearch(c Coordinates, now time.Time) Search {
	return Search{
		Kind:      KindLatLon,
		Coords:    &Coordinates{Lat: c.Lat, Lon: c.Lon},
		Timestamp: now.UTC(),
	}
}

// Key returns a canonical string identifying what is searched, independent
// of when. Two searches with equal keys hit the same cache entry.
func (s Search) Key() string {
	switch s.Kind {
	case KindLatLon:
		if s.Coords == nil {
			return string(KindLatLon) + ":"
		}
		// ~1km precision keeps nearby fixes on one entry.
		return fmt.Sprintf("%s:%.2f,%.2f", KindLatLon, s.Coords.Lat, s.Coords.Lon)
	default:
		return string(s.Kind) + ":" + strings.ToLower(s.Query)
	}
}

// String renders the search the way a user typed it.
func (s Search) String() string {
	if s.Kind == KindLatLon && s.Coords != nil {
		return strconv.FormatFloat(s.Coords.Lat, 'f', 4, 64) + "," +
			strconv.FormatFloat(s.Coords.Lon, 'f', 4, 64)
	}
	return s.Query
}

// Valid reports whether the search carries a payload matching its kind.
func (s Search) Valid() bool {
	switch s.Kind {
	case KindText, KindZipCode:
		return s.Query != ""
	case KindLatLon:
		return s.Coords != nil
	default:
		return false
	}
}
