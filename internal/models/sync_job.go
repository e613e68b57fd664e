package models

import "time"

// SyncJob is a Server B payload that failed to deliver and is waiting for
// the retry scheduler.
type SyncJob struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	DeliveryID  string     `gorm:"uniqueIndex;not null" json:"delivery_id"`
	Endpoint    string     `gorm:"not null;index" json:"endpoint"`
	Payload     string     `gorm:"type:text;not null" json:"payload"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `json:"last_error,omitzero"`
	CompletedAt *time.Time `gorm:"index" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
