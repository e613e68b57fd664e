package models

import "time"

// AccountUnit is one pre-provisioned credential payload for a new-account
// plan. A unit is assigned to at most one buyer; allocation flips Used under
// a row lock so concurrent checkouts cannot hand out the same unit.
type AccountUnit struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID       uint       `gorm:"not null;index" json:"plan_id"`
	Credentials  string     `gorm:"not null" json:"credentials"`
	Used         bool       `gorm:"not null;default:false;index" json:"used"`
	AssignedTo   string     `gorm:"index" json:"assigned_to,omitzero"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type AccountUnitCreateRequest struct {
	PlanID      uint   `json:"plan_id"`
	Credentials string `json:"credentials"`
}

// PlanStock is the storefront view of inventory availability.
type PlanStock struct {
	PlanID    uint  `json:"plan_id"`
	Available int64 `json:"available"`
}
