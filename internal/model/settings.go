package model

import "time"

// Proposal status values. A proposal is resolved exactly once; terminal
// states are immutable.
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalDeclined = "declined"
)

// SessionSettings are the couple's shared session preferences. Changes flow
// through the proposal flow: one partner proposes, the other resolves.
type SessionSettings struct {
	CoupleID        int64     `json:"couple_id"`
	Frequency       string    `json:"frequency"`
	DurationMinutes int       `json:"duration_minutes"`
	ReminderTime    string    `json:"reminder_time"`
	FocusAreas      string    `json:"focus_areas"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SettingsPatch is a partial settings change. Nil fields are left untouched
// when the patch is applied.
type SettingsPatch struct {
	Frequency       *string `json:"frequency,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	ReminderTime    *string `json:"reminder_time,omitempty"`
	FocusAreas      *string `json:"focus_areas,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.Frequency == nil && p.DurationMinutes == nil &&
		p.ReminderTime == nil && p.FocusAreas == nil
}

// Apply merges the patch into settings.
func (p SettingsPatch) Apply(s *SessionSettings) {
	if p.Frequency != nil {
		s.Frequency = *p.Frequency
	}
	if p.DurationMinutes != nil {
		s.DurationMinutes = *p.DurationMinutes
	}
	if p.ReminderTime != nil {
		s.ReminderTime = *p.ReminderTime
	}
	if p.FocusAreas != nil {
		s.FocusAreas = *p.FocusAreas
	}
}

// SessionSettingsProposal is a pending settings change awaiting the other
// partner's accept or decline. At most one pending proposal exists per couple.
type SessionSettingsProposal struct {
	ID         string        `json:"id"`
	CoupleID   int64         `json:"couple_id"`
	ProposedBy int64         `json:"proposed_by"`
	Settings   SettingsPatch `json:"settings"`
	Status     string        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
