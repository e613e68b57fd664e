package models

import "time"

type PlanType string

const (
	// PlanTypeNewAccount provisions a pre-loaded inventory unit to the buyer.
	PlanTypeNewAccount PlanType = "new_account"
	// PlanTypeRecharge adds credits to an account the buyer already owns.
	PlanTypeRecharge PlanType = "recharge"
)

func (t PlanType) Valid() bool {
	return t == PlanTypeNewAccount || t == PlanTypeRecharge
}

// CreditPlan is a purchasable credit bundle. PriceCents is the charged
// amount before any coupon; Stripe product/price refs are filled in by the
// billing sync and may be empty for plans never synced.
type CreditPlan struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	Description     string    `json:"description,omitzero"`
	Credits         int64     `gorm:"not null" json:"credits"`
	PriceCents      int64     `gorm:"not null" json:"price_cents"`
	Type            PlanType  `gorm:"not null;index" json:"type"`
	StripeProductID string    `json:"stripe_product_id,omitzero"`
	StripePriceID   string    `gorm:"index" json:"stripe_price_id,omitzero"`
	// No column default: GORM would skip a zero-valued field carrying a
	// default tag on insert, silently flipping Active:false plans to active.
	// The create path sets the flag explicitly instead.
	Active          bool      `gorm:"not null;index" json:"active"`
	SortOrder       int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type PlanCreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Credits     int64    `json:"credits"`
	PriceCents  int64    `json:"price_cents"`
	Type        PlanType `json:"type"`
	SortOrder   int      `json:"sort_order"`
}

type PlanUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Credits     *int64  `json:"credits,omitempty"`
	PriceCents  *int64  `json:"price_cents,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}
