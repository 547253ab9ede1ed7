package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the on-device data source: a single SQLite file holding
// cached weather and the recent search history.
type SQLiteStore struct {
	db         *sql.DB
	maxHistory int
	maxAge     time.Duration
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS weather_cache (
	search_key TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS recent_searches (
	search_key TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	ts         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recent_searches_ts ON recent_searches(ts);`

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string, maxHistory int, maxAge time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the driver serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Printf("WARN: could not set WAL mode: %v", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, maxHistory: maxHistory, maxAge: maxAge}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) SaveWeather(ctx context.Context, w weather.Weather) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode weather: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weather_cache (search_key, data, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT (search_key) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		w.Search.Key(), string(data), w.FetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save weather %s: %w", w.Search.Key(), err)
	}
	return nil
}

func (s *SQLiteStore) GetWeather(ctx context.Context, key string) (weather.Weather, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM weather_cache WHERE search_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Weather{}, ErrNotFound
	}
	if err != nil {
		return weather.Weather{}, fmt.Errorf("read weather %s: %w", key, err)
	}

	var w weather.Weather
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return weather.Weather{}, fmt.Errorf("decode weather %s: %w", key, err)
	}
	if expired(w, s.maxAge) {
		return weather.Weather{}, ErrNotFound
	}
	return w, nil
}

func (s *SQLiteStore) SaveSearch(ctx context.Context, search weather.Search) error {
	data, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recent_searches (search_key, data, ts) VALUES (?, ?, ?)
		ON CONFLICT (search_key) DO UPDATE SET data = excluded.data, ts = excluded.ts`,
		search.Key(), string(data), search.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("save search %s: %w", search.Key(), err)
	}

	if s.maxHistory > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM recent_searches WHERE search_key NOT IN (
				SELECT search_key FROM recent_searches ORDER BY ts DESC LIMIT ?
			)`, s.maxHistory); err != nil {
			return fmt.Errorf("trim recent searches: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) RecentSearches(ctx context.Context) ([]weather.Search, error) {
	query := `SELECT data FROM recent_searches ORDER BY ts DESC`
	args := []any{}
	if s.maxHistory > 0 {
		query += ` LIMIT ?`
		args = append(args, s.maxHistory)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]weather.Search, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var search weather.Search
		if err := json.Unmarshal([]byte(data), &search); err != nil {
			// Skip rows written by an incompatible version.
			log.Printf("WARN: skipping undecodable search row: %v", err)
			continue
		}
		out = append(out, search)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSearch(ctx context.Context, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recent_searches WHERE ts = ?`, ts.UnixNano())
	return err
}
