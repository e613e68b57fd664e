package models

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is the descriptor returned by the external coupon validation RPC.
// Value means percent off for percentage coupons and whole currency units
// off for fixed coupons.
type Discount struct {
	CouponID    string       `json:"coupon_id"`
	Code        string       `json:"code"`
	IsActive    bool         `json:"is_active"`
	Type        DiscountType `json:"type"`
	Value       int64        `json:"value"`
	AffiliateID string       `json:"affiliate_id,omitzero"`
}
