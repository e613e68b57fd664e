package models

import "time"

// WebhookEvent stores every inbound provider event with the provider's own
// event id under a unique index, so a redelivered event is detected before
// any side effect runs.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider        string     `gorm:"not null;uniqueIndex:ux_webhook_events_provider_event,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"not null;uniqueIndex:ux_webhook_events_provider_event,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"not null;index" json:"event_type"`
	Payload         string     `gorm:"type:text" json:"payload"`
	SignatureValid  bool       `gorm:"not null;default:false" json:"signature_valid"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `json:"processing_error,omitzero"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
