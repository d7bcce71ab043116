package model

import "time"

// Reminder frequency values.
const (
	FreqOnce    = "once"
	FreqDaily   = "daily"
	FreqWeekly  = "weekly"
	FreqMonthly = "monthly"
	FreqCustom  = "custom"
)

// Notification channel values.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelBoth  = "both"
	ChannelNone  = "none"
)

// Reminder is a couple-scoped scheduled notification. A once-reminder is
// consumed by its first delivery attempt; recurring reminders stay active
// and have ScheduledFor advanced after each attempt.
type Reminder struct {
	ID                  int64      `json:"id"`
	CoupleID            int64      `json:"couple_id"`
	CreatedBy           int64      `json:"created_by"`
	Title               string     `json:"title"`
	Message             string     `json:"message"`
	Frequency           string     `json:"frequency"`
	CustomSchedule      string     `json:"custom_schedule,omitempty"`
	ScheduledFor        time.Time  `json:"scheduled_for"`
	IsActive            bool       `json:"is_active"`
	NotificationChannel string     `json:"notification_channel"`
	IsSnoozed           bool       `json:"is_snoozed"`
	SnoozeUntil         *time.Time `json:"snooze_until,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RecordID implements state.Keyed.
func (r Reminder) RecordID() int64 { return r.ID }

// Recurring reports whether the reminder repeats.
func (r Reminder) Recurring() bool { return r.Frequency != FreqOnce }
