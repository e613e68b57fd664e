package api

import (
	"errors"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/accounts"
	"github.com/maiscreditos/creditshub/internal/services/auth"
	"github.com/maiscreditos/creditshub/internal/services/coupons"
	"github.com/maiscreditos/creditshub/internal/services/users"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type UsersHandler struct {
	userService    *users.Service
	accountService *accounts.Service
}

func NewUsersHandler(userService *users.Service, accountService *accounts.Service) *UsersHandler {
	return &UsersHandler{
		userService:    userService,
		accountService: accountService,
	}
}

// GetMe returns the authenticated user's profile.
func (h *UsersHandler) GetMe(c *fiber.Ctx) error {
	profile, ok := auth.GetProfile(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	return c.JSON(profile)
}

type updateMeRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// UpdateMe updates the authenticated user's contact info.
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := h.userService.Update(c.UserContext(), userID, &models.UserUpdateRequest{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		fiberlog.Errorf("failed to update profile %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return c.JSON(profile)
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

// ApplyCoupon stores a validated coupon association on the profile.
func (h *UsersHandler) ApplyCoupon(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req applyCouponRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	discount, err := h.userService.ApplyCoupon(c.UserContext(), userID, req.Code)
	if err != nil {
		if errors.Is(err, coupons.ErrCouponNotFound) || errors.Is(err, coupons.ErrCouponInactive) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Coupon is invalid or inactive",
			})
		}
		fiberlog.Errorf("failed to apply coupon for %s: %v", userID, err)
		appErr := models.SanitizeError(err)
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
			"error": appErr,
		})
	}

	return c.JSON(fiber.Map{
		"discount": discount,
	})
}

// ClearCoupon removes the stored coupon association.
func (h *UsersHandler) ClearCoupon(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	if err := h.userService.ClearCoupon(c.UserContext(), userID); err != nil {
		fiberlog.Errorf("failed to clear coupon for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear coupon",
		})
	}

	return c.JSON(fiber.Map{
		"cleared": true,
	})
}

// GetMyAccounts lists the credential payloads assigned to the user.
func (h *UsersHandler) GetMyAccounts(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	units, err := h.accountService.ListAssigned(c.UserContext(), userID)
	if err != nil {
		fiberlog.Errorf("failed to list accounts for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load accounts",
		})
	}

	return c.JSON(fiber.Map{
		"accounts": units,
	})
}
