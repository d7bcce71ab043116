package model

import "time"

// EmailSuppression records delivery feedback for a recipient address. Once
// any flag is set the address is never emailed again; flags are never
// cleared by this system.
type EmailSuppression struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	UnsubscribeToken string     `json:"-"`
	BouncedAt        *time.Time `json:"bounced_at,omitempty"`
	ComplainedAt     *time.Time `json:"complained_at,omitempty"`
	OptedOutAt       *time.Time `json:"opted_out_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Suppressed reports whether any suppression flag is set.
func (s EmailSuppression) Suppressed() bool {
	return s.BouncedAt != nil || s.ComplainedAt != nil || s.OptedOutAt != nil
}
