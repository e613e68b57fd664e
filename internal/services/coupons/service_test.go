package coupons

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRPCServer(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewService(models.CouponRPCConfig{
		BaseURL:   srv.URL,
		AnonKey:   "anon-key",
		ProductID: "prod-123",
	}, nil)
}

func TestValidate(t *testing.T) {
	t.Run("object response", func(t *testing.T) {
		svc := newRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, validateRPCPath, r.URL.Path)
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

			var req validateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "PROMO20", req.CouponCode)
			assert.Equal(t, "prod-123", req.ProductID)

			_ = json.NewEncoder(w).Encode(validateResult{
				CouponID: "c-1",
				IsActive: true,
				Type:     "percentage",
				Value:    20,
			})
		})

		discount, err := svc.Validate(context.Background(), "PROMO20")
		require.NoError(t, err)
		assert.Equal(t, "c-1", discount.CouponID)
		assert.Equal(t, "PROMO20", discount.Code)
		assert.Equal(t, models.DiscountPercentage, discount.Type)
		assert.EqualValues(t, 20, discount.Value)
	})

	t.Run("array response", func(t *testing.T) {
		svc := newRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([]validateResult{{
				CouponID: "c-2",
				IsActive: true,
				Type:     "fixed",
				Value:    15,
			}})
		})

		discount, err := svc.Validate(context.Background(), "FIXED15")
		require.NoError(t, err)
		assert.Equal(t, "c-2", discount.CouponID)
		assert.Equal(t, models.DiscountFixed, discount.Type)
	})

	t.Run("inactive coupon", func(t *testing.T) {
		svc := newRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(validateResult{
				CouponID: "c-3",
				IsActive: false,
				Type:     "percentage",
				Value:    10,
			})
		})

		_, err := svc.Validate(context.Background(), "EXPIRED")
		assert.ErrorIs(t, err, ErrCouponInactive)
	})

	t.Run("unknown coupon", func(t *testing.T) {
		svc := newRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([]validateResult{})
		})

		_, err := svc.Validate(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})

	t.Run("empty code short-circuits", func(t *testing.T) {
		svc := newRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("remote should not be called for an empty code")
		})

		_, err := svc.Validate(context.Background(), "")
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})
}

func TestDecodeValidateResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  string
		wantErr error
	}{
		{name: "object", raw: `{"coupon_id":"c-1","is_active":true}`, wantID: "c-1"},
		{name: "array", raw: `[{"coupon_id":"c-2","is_active":true}]`, wantID: "c-2"},
		{name: "empty array", raw: `[]`, wantErr: ErrCouponNotFound},
		{name: "empty payload", raw: ``, wantErr: ErrCouponNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeValidateResult(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, result.CouponID)
		})
	}
}
