package model

import "time"

// CheckIn is a structured daily check-in by one partner, visible to both
// unless marked private.
type CheckIn struct {
	ID        int64     `json:"id"`
	CoupleID  int64     `json:"couple_id"`
	PartnerID int64     `json:"partner_id"`
	Mood      int       `json:"mood"`
	Gratitude string    `json:"gratitude"`
	Note      string    `json:"note"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID implements state.Keyed.
func (c CheckIn) RecordID() int64 { return c.ID }

// Bookend is a short morning intention or evening reflection for a single day.
type Bookend struct {
	ID        int64     `json:"id"`
	CoupleID  int64     `json:"couple_id"`
	PartnerID int64     `json:"partner_id"`
	Kind      string    `json:"kind"` // "morning" or "evening"
	Body      string    `json:"body"`
	Day       string    `json:"day"` // YYYY-MM-DD
	CreatedAt time.Time `json:"created_at"`
}

// RecordID implements state.Keyed.
func (b Bookend) RecordID() int64 { return b.ID }
