package models

import "time"

// UserProfile mirrors the hosted-auth user inside our own database.
// The Clerk user id is the stable external identity; everything billing
// related (credit balance, sticky coupon) lives on this row.
type UserProfile struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClerkUserID    string    `gorm:"uniqueIndex;not null" json:"clerk_user_id"`
	Email          string    `gorm:"index" json:"email"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitzero"`
	CreditBalance  int64     `gorm:"not null;default:0" json:"credit_balance"`
	IsAdmin        bool      `gorm:"not null;default:false" json:"is_admin"`
	CouponCode     string    `gorm:"index" json:"coupon_code,omitzero"`
	StripeCouponID string    `json:"stripe_coupon_id,omitzero"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type UserUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	IsAdmin *bool   `json:"is_admin,omitempty"`
}
