package models

import "time"

// WebhookEvent records processor event ids that have already been applied,
// so redelivered events can be acknowledged without side effects.
type WebhookEvent struct {
	EventID   string    `gorm:"primaryKey;size:255" json:"eventId"`
	Kind      string    `gorm:"size:64" json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}
