package api

import (
	"errors"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/coupons"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type CouponsHandler struct {
	couponService *coupons.Service
}

func NewCouponsHandler(couponService *coupons.Service) *CouponsHandler {
	return &CouponsHandler{couponService: couponService}
}

type validateCouponRequest struct {
	Code       string `json:"code"`
	PriceCents int64  `json:"priceCents,omitempty"`
}

// ValidateCoupon resolves a code so the storefront can preview the
// discounted price before checkout.
func (h *CouponsHandler) ValidateCoupon(c *fiber.Ctx) error {
	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	discount, err := h.couponService.Validate(c.UserContext(), req.Code)
	if err != nil {
		if errors.Is(err, coupons.ErrCouponNotFound) || errors.Is(err, coupons.ErrCouponInactive) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Coupon is invalid or inactive",
			})
		}
		fiberlog.Errorf("coupon validation failed: %v", err)
		appErr := models.SanitizeError(err)
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
			"error": appErr,
		})
	}

	resp := fiber.Map{
		"discount": discount,
	}
	if req.PriceCents > 0 {
		resp["finalPriceCents"] = coupons.FinalPriceCents(req.PriceCents, discount)
	}

	return c.JSON(resp)
}
