package models

import "time"

type RechargeStatus string

const (
	// RechargePendingLink means the purchase completed but the buyer has not
	// submitted the account link to recharge yet.
	RechargePendingLink RechargeStatus = "pending_link"
	// RechargePending means the link was submitted and an operator still has
	// to apply the credits on the external account.
	RechargePending   RechargeStatus = "pending"
	RechargeCompleted RechargeStatus = "completed"
	RechargeRejected  RechargeStatus = "rejected"
)

// rechargeTransitions is the forward-only status graph.
var rechargeTransitions = map[RechargeStatus][]RechargeStatus{
	RechargePendingLink: {RechargePending},
	RechargePending:     {RechargeCompleted, RechargeRejected},
}

func (s RechargeStatus) CanTransitionTo(next RechargeStatus) bool {
	for _, allowed := range rechargeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RechargeRequest tracks a recharge purchase from webhook to fulfillment.
type RechargeRequest struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ClerkUserID     string         `gorm:"not null;index" json:"clerk_user_id"`
	PlanID          uint           `gorm:"not null;index" json:"plan_id"`
	AccountLink     string         `json:"account_link,omitzero"`
	Status          RechargeStatus `gorm:"not null;index" json:"status"`
	StripeSessionID string         `gorm:"uniqueIndex;not null" json:"stripe_session_id"`
	Note            string         `json:"note,omitzero"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
