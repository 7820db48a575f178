// Package store persists readings in a SQLCipher-encrypted sqlite file.
// Every operation opens its own keyed connection and closes it again;
// nothing is held between cycles.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/speedwagon-io/envmon/internal/model"
)

var (
	ErrStore        = errors.New("store error")
	ErrAccessDenied = errors.New("store access denied: wrong key or not a database")
	ErrMissingKey   = errors.New("store key is required")
)

const timestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	timestampLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

type Row struct {
	ID          int64
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
	AirQuality  int
}

type Store interface {
	Insert(ctx context.Context, reading model.Reading) error
	ReadAll(ctx context.Context) ([]Row, error)
	Recent(ctx context.Context, n int) ([]Row, error)
	Count(ctx context.Context) (int64, error)
}

type SQLiteStore struct {
	log  *slog.Logger
	path string
	key  string
}

// Open creates the store file and schema if needed and checks that key
// unlocks it.
func Open(ctx context.Context, log *slog.Logger, path, key string) (*SQLiteStore, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &SQLiteStore{
		log:  log,
		path: path,
		key:  key,
	}

	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS sensor_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			temperature REAL,
			humidity REAL,
			air_quality INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_sensor_data_timestamp ON sensor_data(timestamp);
	`

	return s.withConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("%w: failed to migrate: %w", ErrStore, err)
		}
		return nil
	})
}

// withConn opens a fresh keyed connection and hands it to fn.
func (s *SQLiteStore) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	db, err := sql.Open("sqlite3", s.dsn())
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %w", ErrStore, err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return keyError("failed to connect", err)
	}
	defer conn.Close()

	// a wrong key only surfaces on first page access
	var n int
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		return keyError("failed to verify key", err)
	}

	return fn(conn)
}

// dsn carries the key as a connection parameter so the driver applies it
// before any statement touches the file.
func (s *SQLiteStore) dsn() string {
	params := url.Values{}
	params.Set("_pragma_key", escapeKey(s.key))
	params.Set("_busy_timeout", "5000")
	return s.path + "?" + params.Encode()
}

// keyError classifies a connect-time failure. SQLITE_NOTADB is what a wrong
// key or an undecryptable file looks like.
func keyError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrNotADB {
		return fmt.Errorf("%w: %w: %w", ErrStore, ErrAccessDenied, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func (s *SQLiteStore) Insert(ctx context.Context, reading model.Reading) error {
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		if reading.Timestamp.IsZero() {
			_, err = conn.ExecContext(ctx,
				"INSERT INTO sensor_data (temperature, humidity, air_quality) VALUES (?, ?, ?)",
				reading.Temperature, reading.Humidity, reading.AirQuality,
			)
		} else {
			_, err = conn.ExecContext(ctx,
				"INSERT INTO sensor_data (timestamp, temperature, humidity, air_quality) VALUES (?, ?, ?, ?)",
				reading.Timestamp.UTC().Format(timestampLayout), reading.Temperature, reading.Humidity, reading.AirQuality,
			)
		}
		if err != nil {
			return fmt.Errorf("%w: failed to insert reading: %w", ErrStore, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug("reading stored")
	return nil
}

// ReadAll returns every row in insertion order.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]Row, error) {
	return s.query(ctx, `
		SELECT id, timestamp, temperature, humidity, air_quality
		FROM sensor_data
		ORDER BY id ASC
	`)
}

// Recent returns the n newest rows, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Row, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.query(ctx, `
		SELECT id, timestamp, temperature, humidity, air_quality
		FROM sensor_data
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, n)
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sensor_data").Scan(&count); err != nil {
			return fmt.Errorf("%w: failed to count rows: %w", ErrStore, err)
		}
		return nil
	})
	return count, err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Row, error) {
	var out []Row

	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%w: failed to query readings: %w", ErrStore, err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				row         Row
				ts          any
				temperature sql.NullFloat64
				humidity    sql.NullFloat64
				airQuality  sql.NullInt64
			)

			if err := rows.Scan(&row.ID, &ts, &temperature, &humidity, &airQuality); err != nil {
				return fmt.Errorf("%w: failed to scan row: %w", ErrStore, err)
			}

			row.Timestamp = parseTimestamp(ts)
			row.Temperature = nullFloat(temperature)
			row.Humidity = nullFloat(humidity)
			row.AirQuality = model.AirQualityFault
			if airQuality.Valid {
				row.AirQuality = int(airQuality.Int64)
			}

			out = append(out, row)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrStore, err)
		}
		return nil
	})

	return out, err
}

func parseTimestamp(v any) time.Time {
	var s string
	switch val := v.(type) {
	case time.Time:
		return val.UTC()
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		return time.Time{}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// escapeKey doubles quotes; the driver wraps the key in a double-quoted
// string literal.
func escapeKey(key string) string {
	return strings.ReplaceAll(key, `"`, `""`)
}
