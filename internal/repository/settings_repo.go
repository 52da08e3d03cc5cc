package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"powersense/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

var _ SettingsRepo = (*SettingsSQLite)(nil)

const (
	settingsColumns = `user_id, theme, cost_per_kwh, max_spike_alert, appliance_alert, summary_enabled, summary_interval_h, haptics_enabled`

	selectSettingsSQL   = `SELECT ` + settingsColumns + ` FROM settings WHERE user_id = ?`
	selectAlertingSQL   = `SELECT ` + settingsColumns + ` FROM settings WHERE max_spike_alert = 1 OR appliance_alert = 1`
	upsertSettingsSQL   = `
		INSERT INTO settings (` + settingsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			theme=excluded.theme,
			cost_per_kwh=excluded.cost_per_kwh,
			max_spike_alert=excluded.max_spike_alert,
			appliance_alert=excluded.appliance_alert,
			summary_enabled=excluded.summary_enabled,
			summary_interval_h=excluded.summary_interval_h,
			haptics_enabled=excluded.haptics_enabled
	`
)

func scanSettings(row rowScanner) (models.Settings, error) {
	var s models.Settings
	err := row.Scan(
		&s.UserID,
		&s.Theme,
		&s.CostPerKwh,
		&s.MaxSensorSpikeAlert,
		&s.PerApplianceAlert,
		&s.SummaryEnabled,
		&s.SummaryIntervalHours,
		&s.HapticsEnabled,
	)
	return s, err
}

// Get returns stored settings, or the defaults when none were saved.
func (r *SettingsSQLite) Get(ctx context.Context, userID int) (models.Settings, error) {
	s, err := scanSettings(r.db.QueryRowContext(ctx, selectSettingsSQL, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultSettings(userID), nil
		}
		return models.Settings{}, fmt.Errorf("select settings %d: %w", userID, err)
	}
	return s, nil
}

func (r *SettingsSQLite) Save(ctx context.Context, s models.Settings) error {
	_, err := r.db.ExecContext(ctx, upsertSettingsSQL,
		s.UserID,
		s.Theme,
		s.CostPerKwh,
		s.MaxSensorSpikeAlert,
		s.PerApplianceAlert,
		s.SummaryEnabled,
		s.SummaryIntervalHours,
		s.HapticsEnabled,
	)
	if err != nil {
		return fmt.Errorf("upsert settings %d: %w", s.UserID, err)
	}
	return nil
}

// ListAlerting returns the settings of every user with at least one alert enabled.
func (r *SettingsSQLite) ListAlerting(ctx context.Context) ([]models.Settings, error) {
	rows, err := r.db.QueryContext(ctx, selectAlertingSQL)
	if err != nil {
		return nil, fmt.Errorf("list alerting settings: %w", err)
	}
	defer rows.Close()

	var out []models.Settings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
