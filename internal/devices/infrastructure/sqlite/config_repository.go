package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	devices "coldchain-bridge/internal/devices/domain"
)

const defaultConfigsTable = "device_configs"

// ConfigRepository is a SQLite repository for device configurations.
type ConfigRepository struct {
	db    *sql.DB
	table string
}

// NewConfigRepository constructs a repository.
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db, table: defaultConfigsTable}
}

// Load reads the full device configuration map.
func (r *ConfigRepository) Load(ctx context.Context) (map[string]devices.Config, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("config repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT device_id, name, location, temp_min_f, temp_max_f
FROM %s`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]devices.Config)
	for rows.Next() {
		var cfg devices.Config
		if err := rows.Scan(&cfg.DeviceID, &cfg.Name, &cfg.Location, &cfg.TempMinF, &cfg.TempMaxF); err != nil {
			return nil, err
		}
		result[cfg.DeviceID] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save replaces the persisted configuration map wholesale within one
// transaction.
func (r *ConfigRepository) Save(ctx context.Context, configs map[string]devices.Config) error {
	if r == nil || r.db == nil {
		return errors.New("config repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", r.table)); err != nil {
		_ = tx.Rollback()
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (device_id, name, location, temp_min_f, temp_max_f)
VALUES (?, ?, ?, ?, ?)`, r.table)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for id, cfg := range configs {
		if id == "" {
			_ = tx.Rollback()
			return errors.New("config repo: empty device id")
		}
		if _, err := stmt.ExecContext(ctx, id, cfg.Name, cfg.Location, cfg.TempMinF, cfg.TempMaxF); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
