package models

import "time"

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// PaymentTransaction records one completed purchase. StripeSessionID carries
// a unique index: a redelivered checkout.session.completed event hits the
// constraint instead of crediting twice.
type PaymentTransaction struct {
	ID              uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	ClerkUserID     string            `gorm:"not null;index" json:"clerk_user_id"`
	PlanID          uint              `gorm:"not null;index" json:"plan_id"`
	PlanType        PlanType          `gorm:"not null" json:"plan_type"`
	CreditsAdded    int64             `gorm:"not null" json:"credits_added"`
	AmountCents     int64             `gorm:"not null" json:"amount_cents"`
	Status          TransactionStatus `gorm:"not null;index" json:"status"`
	CouponCode      string            `json:"coupon_code,omitzero"`
	StripeSessionID string            `gorm:"uniqueIndex;not null" json:"stripe_session_id"`
	BalanceAfter    int64             `gorm:"not null" json:"balance_after"`
	CreatedAt       time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}

// AddCreditsParams is the input to the ledger's single crediting path.
type AddCreditsParams struct {
	ClerkUserID     string
	PlanID          uint
	PlanType        PlanType
	Credits         int64
	AmountCents     int64
	CouponCode      string
	StripeSessionID string
}
