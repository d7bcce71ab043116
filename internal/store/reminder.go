package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calebfife/tandem/internal/model"
)

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

func scanReminder(scanner interface{ Scan(...any) error }) (*model.Reminder, error) {
	var r model.Reminder
	var isActive, isSnoozed int
	var snoozeUntil sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.CoupleID, &r.CreatedBy, &r.Title, &r.Message,
		&r.Frequency, &r.CustomSchedule, &r.ScheduledFor, &isActive,
		&r.NotificationChannel, &isSnoozed, &snoozeUntil,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.IsActive = isActive != 0
	r.IsSnoozed = isSnoozed != 0
	if snoozeUntil.Valid {
		r.SnoozeUntil = &snoozeUntil.Time
	}
	return &r, nil
}

const reminderCols = `id, couple_id, created_by, title, message, frequency, custom_schedule, scheduled_for, is_active, notification_channel, is_snoozed, snooze_until, created_at, updated_at`

func (s *ReminderStore) Create(coupleID, createdBy int64, title, message, frequency, customSchedule string, scheduledFor time.Time, channel string) (*model.Reminder, error) {
	result, err := s.db.Exec(
		`INSERT INTO reminders (couple_id, created_by, title, message, frequency, custom_schedule, scheduled_for, notification_channel)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		coupleID, createdBy, title, message, frequency, customSchedule, scheduledFor.UTC(), channel,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ReminderStore) GetByID(id int64) (*model.Reminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderCols+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderStore) ListByCouple(coupleID int64) ([]model.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT `+reminderCols+` FROM reminders WHERE couple_id = ? ORDER BY scheduled_for, id`,
		coupleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListDue returns active reminders whose scheduled time has passed and that
// are not currently snoozed, restricted to the given notification channels.
// Rows come back in commit order of their schedule so batch processing is
// deterministic.
func (s *ReminderStore) ListDue(now time.Time, channels ...string) ([]model.Reminder, error) {
	if len(channels) == 0 {
		return nil, nil
	}

	query := `SELECT ` + reminderCols + ` FROM reminders
		 WHERE is_active = 1 AND scheduled_for <= ?
		 AND (is_snoozed = 0 OR snooze_until IS NULL OR snooze_until <= ?)
		 AND notification_channel IN (?` + repeatPlaceholder(len(channels)-1) + `)
		 ORDER BY scheduled_for, id`

	args := []any{now.UTC(), now.UTC()}
	for _, ch := range channels {
		args = append(args, ch)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func repeatPlaceholder(n int) string {
	var out string
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

func collectReminders(rows *sql.Rows) ([]model.Reminder, error) {
	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

func (s *ReminderStore) Update(id int64, title, message, frequency, customSchedule string, scheduledFor time.Time, channel string) (*model.Reminder, error) {
	_, err := s.db.Exec(
		`UPDATE reminders SET title = ?, message = ?, frequency = ?, custom_schedule = ?, scheduled_for = ?, notification_channel = ?, updated_at = ?
		 WHERE id = ?`,
		title, message, frequency, customSchedule, scheduledFor.UTC(), channel, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	return s.GetByID(id)
}

// Deactivate marks a reminder inactive. Used to consume once-reminders after
// their delivery attempt.
func (s *ReminderStore) Deactivate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE reminders SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate reminder: %w", err)
	}
	return nil
}

// AdvanceSchedule moves a recurring reminder to its next occurrence and
// clears any expired snooze.
func (s *ReminderStore) AdvanceSchedule(id int64, next time.Time) error {
	_, err := s.db.Exec(
		`UPDATE reminders SET scheduled_for = ?, is_snoozed = 0, snooze_until = NULL, updated_at = ? WHERE id = ?`,
		next.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("advance reminder schedule: %w", err)
	}
	return nil
}

// Snooze pushes a reminder out of the due set until the given time.
func (s *ReminderStore) Snooze(id int64, until time.Time) (*model.Reminder, error) {
	_, err := s.db.Exec(
		`UPDATE reminders SET is_snoozed = 1, snooze_until = ?, updated_at = ? WHERE id = ?`,
		until.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("snooze reminder: %w", err)
	}
	return s.GetByID(id)
}

func (s *ReminderStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}
