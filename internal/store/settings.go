package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calebfife/tandem/internal/model"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetByCouple returns the couple's session settings, creating the default row
// if it does not exist yet.
func (s *SettingsStore) GetByCouple(coupleID int64) (*model.SessionSettings, error) {
	settings, err := s.get(coupleID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	_, err = s.db.Exec(`INSERT OR IGNORE INTO session_settings (couple_id) VALUES (?)`, coupleID)
	if err != nil {
		return nil, fmt.Errorf("insert default settings: %w", err)
	}
	return s.get(coupleID)
}

func (s *SettingsStore) get(coupleID int64) (*model.SessionSettings, error) {
	var ss model.SessionSettings
	err := s.db.QueryRow(
		`SELECT couple_id, frequency, duration_minutes, reminder_time, focus_areas, updated_at
		 FROM session_settings WHERE couple_id = ?`,
		coupleID,
	).Scan(&ss.CoupleID, &ss.Frequency, &ss.DurationMinutes, &ss.ReminderTime, &ss.FocusAreas, &ss.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &ss, nil
}

// ApplyPatch merges a partial settings change into the couple's live settings
// and returns the result.
func (s *SettingsStore) ApplyPatch(coupleID int64, patch model.SettingsPatch) (*model.SessionSettings, error) {
	settings, err := s.GetByCouple(coupleID)
	if err != nil {
		return nil, err
	}

	patch.Apply(settings)

	_, err = s.db.Exec(
		`UPDATE session_settings SET frequency = ?, duration_minutes = ?, reminder_time = ?, focus_areas = ?, updated_at = ?
		 WHERE couple_id = ?`,
		settings.Frequency, settings.DurationMinutes, settings.ReminderTime, settings.FocusAreas,
		time.Now().UTC(), coupleID,
	)
	if err != nil {
		return nil, fmt.Errorf("apply settings patch: %w", err)
	}
	return s.get(coupleID)
}
