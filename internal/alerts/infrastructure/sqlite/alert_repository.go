package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	alerts "coldchain-bridge/internal/alerts/domain"
)

const defaultAlertsTable = "alerts"

// AlertRepository is a SQLite repository for alerts.
type AlertRepository struct {
	db    *sql.DB
	table string
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db, table: defaultAlertsTable}
}

// Insert appends an alert and assigns its row id.
func (r *AlertRepository) Insert(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.Type == "" || alert.Severity == "" || alert.DeviceID == "" {
		return errors.New("alert repo: missing fields")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	alert_type, severity, device_id, location,
	temperature, threshold_min, threshold_max, message, synced
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table)
	result, err := r.db.ExecContext(ctx, query,
		alert.Type,
		string(alert.Severity),
		alert.DeviceID,
		alert.Location,
		alert.Temperature,
		alert.ThresholdMin,
		alert.ThresholdMax,
		alert.Message,
		boolToInt(alert.Synced),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	alert.ID = id
	return nil
}

// Unsynced returns up to limit not-yet-forwarded alerts in insertion order.
func (r *AlertRepository) Unsynced(ctx context.Context, limit int) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, alert_type, severity, device_id, location,
	temperature, threshold_min, threshold_max, message, synced
FROM %s
WHERE synced = 0
ORDER BY id ASC
LIMIT ?`, r.table)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		var (
			alert    alerts.Alert
			severity string
			synced   int
		)
		if err := rows.Scan(
			&alert.ID,
			&alert.Type,
			&severity,
			&alert.DeviceID,
			&alert.Location,
			&alert.Temperature,
			&alert.ThresholdMin,
			&alert.ThresholdMax,
			&alert.Message,
			&synced,
		); err != nil {
			return nil, err
		}
		alert.Severity = alerts.Severity(severity)
		alert.Synced = synced != 0
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSynced flips the synced flag for the given row ids. Idempotent; unknown
// ids are a no-op.
func (r *AlertRepository) MarkSynced(ctx context.Context, ids []int64) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
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

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
