package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the embedded SQLite database backing the bridge.
//
// WAL mode keeps readers (replay sweeps, report builder) from blocking the
// single writer on the ingest path. busy_timeout covers the rare case where
// two statements race for the write lock.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("store: empty database path")
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_fk=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writes; SQLite holds one write lock
	// per database file anyway.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates the bridge tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("store: nil db")
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sensor_readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	data_json TEXT NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_unsynced
	ON sensor_readings (synced, id)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_device_ts
	ON sensor_readings (device_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	device_id TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	temperature REAL NOT NULL,
	threshold_min REAL NOT NULL,
	threshold_max REAL NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_unsynced
	ON alerts (synced, id)`,
		`CREATE TABLE IF NOT EXISTS device_configs (
	device_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	temp_min_f REAL NOT NULL,
	temp_max_f REAL NOT NULL
)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
