package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	telemetry "coldchain-bridge/internal/telemetry/domain"
)

const defaultReadingsTable = "sensor_readings"

// ReadingRepository is a SQLite implementation for sensor readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository with the default table name.
func NewReadingRepository(db *sql.DB, opts ...ReadingOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReadingOption configures the repository.
type ReadingOption func(*ReadingRepository)

// WithReadingsTable overrides the default table name.
func WithReadingsTable(table string) ReadingOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends a reading and assigns its row id.
func (r *ReadingRepository) Insert(ctx context.Context, reading *telemetry.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	if reading.DeviceID == "" || reading.Timestamp.IsZero() {
		return errors.New("reading repo: missing fields")
	}
	data, err := json.Marshal(reading.Data)
	if err != nil {
		return fmt.Errorf("reading repo: encode data: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (device_id, timestamp, data_json, synced)
VALUES (?, ?, ?, ?)`, r.table)
	result, err := r.db.ExecContext(ctx, query,
		reading.DeviceID,
		reading.Timestamp.UTC().Format(time.RFC3339Nano),
		string(data),
		boolToInt(reading.Synced),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	reading.ID = id
	return nil
}

// Recent returns the device's readings at or after since, oldest first.
func (r *ReadingRepository) Recent(ctx context.Context, deviceID string, since time.Time) ([]telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("reading repo: empty device id")
	}
	query := fmt.Sprintf(`
SELECT id, device_id, timestamp, data_json, synced
FROM %s
WHERE device_id = ? AND timestamp >= ?
ORDER BY id ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query, deviceID, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// Unsynced returns up to limit not-yet-forwarded readings in insertion order.
func (r *ReadingRepository) Unsynced(ctx context.Context, limit int) ([]telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, device_id, timestamp, data_json, synced
FROM %s
WHERE synced = 0
ORDER BY id ASC
LIMIT ?`, r.table)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// MarkSynced flips the synced flag for the given row ids. Unknown ids are
// ignored and already-synced rows are left untouched, so repeat calls are
// safe.
func (r *ReadingRepository) MarkSynced(ctx context.Context, ids []int64) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
UPDATE %s
SET synced = 1
WHERE id IN (%s)`, r.table, placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func scanReadings(rows *sql.Rows) ([]telemetry.Reading, error) {
	var result []telemetry.Reading
	for rows.Next() {
		var (
			reading telemetry.Reading
			ts      string
			data    string
			synced  int
		)
		if err := rows.Scan(&reading.ID, &reading.DeviceID, &ts, &data, &synced); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("reading repo: bad timestamp %q: %w", ts, err)
		}
		reading.Timestamp = parsed
		if err := json.Unmarshal([]byte(data), &reading.Data); err != nil {
			return nil, fmt.Errorf("reading repo: decode data: %w", err)
		}
		reading.Synced = synced != 0
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
