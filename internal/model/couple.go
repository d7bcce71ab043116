package model

import "time"

// Couple is the two-partner account grouping that scopes all shared data.
type Couple struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Partner is one half of a couple. Email is the delivery address for
// reminder notifications.
type Partner struct {
	ID          int64     `json:"id"`
	CoupleID    int64     `json:"couple_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	AvatarEmoji string    `json:"avatar_emoji"`
	HasPIN      bool      `json:"has_pin"`
	CreatedAt   time.Time `json:"created_at"`
}
