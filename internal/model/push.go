package model

import "time"

// PushSubscription is a web push endpoint registered by one partner's device,
// used for the in_app notification channel.
type PushSubscription struct {
	ID        int64     `json:"id"`
	PartnerID int64     `json:"partner_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"-"`
	AuthKey   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
