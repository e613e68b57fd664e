package coupons

import (
	"math"

	"github.com/maiscreditos/creditshub/internal/models"
)

// FinalPriceCents applies a discount to a price in cents.
// Percentage coupons take value% off the price; fixed coupons subtract
// value whole currency units. The result never goes below zero.
func FinalPriceCents(priceCents int64, discount *models.Discount) int64 {
	if discount == nil || !discount.IsActive {
		return priceCents
	}

	var final int64
	switch discount.Type {
	case models.DiscountPercentage:
		final = int64(math.Round(float64(priceCents) * (1 - float64(discount.Value)/100)))
	case models.DiscountFixed:
		final = priceCents - discount.Value*100
	default:
		return priceCents
	}

	if final < 0 {
		return 0
	}
	return final
}
