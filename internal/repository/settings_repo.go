package repository

import (
	"context"
	"strconv"
)

// Admin-tunable settings, seeded by migration.
const (
	SettingJoinWindowMinutes       = "join_window_minutes"
	SettingJoinGraceMinutes        = "join_grace_minutes"
	SettingNoShowGraceMinutes      = "no_show_grace_minutes"
	SettingCancellationCutoffHours = "cancellation_cutoff_hours"
)

type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetInt falls back to the default when the key is missing or malformed; a
// broken admin setting must never take the booking flow down.
func (r *SettingsRepository) GetInt(ctx context.Context, key string, fallback int) int {
	value, err := r.Get(ctx, key)
	if err != nil {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, key, value)
	return err
}

func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return settings, nil
}
