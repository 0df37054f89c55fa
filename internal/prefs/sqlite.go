// Package prefs persists the watched station list and the last fetched reports in a SQLite
// database.
package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/micutio/metarwatch/internal/avwx"
	_ "modernc.org/sqlite"
)

// SQLitePreferences implements store.Preferences and store.MetarCache.
type SQLitePreferences struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at dbPath, including missing parent directories.
func Open(dbPath string, logger *slog.Logger) (*SQLitePreferences, error) {
	prefsLogger := logger.With("component", "prefs")
	prefsLogger.Debug("opening preferences database", slog.String("path", dbPath))

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("prefs.Open: couldn't create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("prefs.Open: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("prefs.Open: %s: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLitePreferences{db: db, logger: prefsLogger}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stations (
			position INTEGER NOT NULL,
			station_id TEXT PRIMARY KEY
		)
	`)
	if err != nil {
		return fmt.Errorf("initSchema: couldn't create stations table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metars (
			station_id TEXT PRIMARY KEY,
			observed_at INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("initSchema: couldn't create metars table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *SQLitePreferences) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// LoadStations returns the persisted station list in order.
func (p *SQLitePreferences) LoadStations() ([]string, error) {
	rows, err := p.db.Query("SELECT station_id FROM stations ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("loadStations: %w", err)
	}
	defer rows.Close()

	stations := []string{}
	for rows.Next() {
		var stationID string
		if err := rows.Scan(&stationID); err != nil {
			return nil, fmt.Errorf("loadStations: %w", err)
		}
		stations = append(stations, stationID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loadStations: %w", err)
	}
	return stations, nil
}

// SaveStations replaces the persisted station list.
func (p *SQLitePreferences) SaveStations(stationIDs []string) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("saveStations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM stations"); err != nil {
		return fmt.Errorf("saveStations: %w", err)
	}
	for position, stationID := range stationIDs {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO stations (position, station_id) VALUES (?, ?)",
			position, stationID,
		); err != nil {
			return fmt.Errorf("saveStations: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saveStations: %w", err)
	}
	p.logger.Debug("saved stations", slog.Int("count", len(stationIDs)))
	return nil
}

// LoadMetars returns the cached reports of a station and when they were saved. A station
// without cached reports yields no reports and no error.
func (p *SQLitePreferences) LoadMetars(stationID string) ([]avwx.Metar, time.Time, error) {
	var (
		savedAt int64
		payload string
	)
	err := p.db.QueryRow(
		"SELECT saved_at, payload FROM metars WHERE station_id = ?", stationID,
	).Scan(&savedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loadMetars: %w", err)
	}

	var metars []avwx.Metar
	if err := json.Unmarshal([]byte(payload), &metars); err != nil {
		return nil, time.Time{}, fmt.Errorf("loadMetars: %w", err)
	}
	return metars, time.Unix(savedAt, 0), nil
}

// SaveMetars replaces the cached reports of a station.
func (p *SQLitePreferences) SaveMetars(stationID string, metars []avwx.Metar, savedAt time.Time) error {
	payload, err := json.Marshal(metars)
	if err != nil {
		return fmt.Errorf("saveMetars: %w", err)
	}

	var observedAt int64
	if len(metars) > 0 {
		observedAt = metars[0].ObservationTime.Unix()
	}

	_, err = p.db.Exec(`
		INSERT INTO metars (station_id, observed_at, saved_at, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			observed_at = excluded.observed_at,
			saved_at = excluded.saved_at,
			payload = excluded.payload
	`, stationID, observedAt, savedAt.Unix(), string(payload))
	if err != nil {
		return fmt.Errorf("saveMetars: %w", err)
	}
	return nil
}

// DeleteMetars drops the cached reports of a station.
func (p *SQLitePreferences) DeleteMetars(stationID string) error {
	if _, err := p.db.Exec("DELETE FROM metars WHERE station_id = ?", stationID); err != nil {
		return fmt.Errorf("deleteMetars: %w", err)
	}
	return nil
}
