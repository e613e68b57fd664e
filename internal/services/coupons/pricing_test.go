package coupons

import (
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFinalPriceCents(t *testing.T) {
	tests := []struct {
		name       string
		priceCents int64
		discount   *models.Discount
		want       int64
	}{
		{
			name:       "no discount",
			priceCents: 10000,
			discount:   nil,
			want:       10000,
		},
		{
			name:       "percentage discount",
			priceCents: 10000,
			discount:   &models.Discount{IsActive: true, Type: models.DiscountPercentage, Value: 20},
			want:       8000,
		},
		{
			name:       "percentage rounds to nearest cent",
			priceCents: 999,
			discount:   &models.Discount{IsActive: true, Type: models.DiscountPercentage, Value: 15},
			want:       849,
		},
		{
			name:       "fixed discount subtracts whole currency units",
			priceCents: 10000,
			discount:   &models.Discount{IsActive: true, Type: models.DiscountFixed, Value: 15},
			want:       8500,
		},
		{
			name:       "fixed discount larger than price clamps to zero",
			priceCents: 1000,
			discount:   &models.Discount{IsActive: true, Type: models.DiscountFixed, Value: 50},
			want:       0,
		},
		{
			name:       "hundred percent off",
			priceCents: 10000,
			discount:   &models.Discount{IsActive: true, Type: models.DiscountPercentage, Value: 100},
			want:       0,
		},
		{
			name:       "inactive discount is ignored",
			priceCents: 10000,
			discount:   &models.Discount{IsActive: false, Type: models.DiscountPercentage, Value: 20},
			want:       10000,
		},
		{
			name:       "unknown discount type is ignored",
			priceCents: 10000,
			discount:   &models.Discount{IsActive: true, Type: "mystery", Value: 20},
			want:       10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FinalPriceCents(tt.priceCents, tt.discount))
		})
	}
}
