package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard/backend/internal/storage/models"
)

// SettingsRepository provides data access for per-user preferences.
type SettingsRepository struct {
	BaseRepository
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Get retrieves the settings of a user. It returns nil if the user has never
// saved any.
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	s := &models.UserSettings{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT user_id, timezone, week_start, updated_at FROM user_settings WHERE user_id = ?
	`, userID).Scan(&s.UserID, &s.Timezone, &s.WeekStart, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user settings: %w", err)
	}

	return s, nil
}

// Save inserts or replaces the settings of a user.
func (r *SettingsRepository) Save(ctx context.Context, s *models.UserSettings) error {
	s.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO user_settings (user_id, timezone, week_start, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			timezone = excluded.timezone,
			week_start = excluded.week_start,
			updated_at = excluded.updated_at
	`, s.UserID, s.Timezone, s.WeekStart, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving user settings: %w", err)
	}

	return nil
}
