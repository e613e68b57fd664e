package api

import (
	"errors"

	"github.com/maiscreditos/creditshub/internal/services/auth"
	"github.com/maiscreditos/creditshub/internal/services/recharges"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type RechargesHandler struct {
	rechargeService *recharges.Service
}

func NewRechargesHandler(rechargeService *recharges.Service) *RechargesHandler {
	return &RechargesHandler{rechargeService: rechargeService}
}

// ListMine returns the authenticated user's recharge requests.
func (h *RechargesHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	requests, err := h.rechargeService.ListForUser(c.UserContext(), userID)
	if err != nil {
		fiberlog.Errorf("failed to list recharges for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load recharge requests",
		})
	}

	return c.JSON(fiber.Map{
		"recharges": requests,
	})
}

type submitLinkRequest struct {
	AccountLink string `json:"accountLink"`
}

// SubmitLink records the account link for a pending_link request.
func (h *RechargesHandler) SubmitLink(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recharge id",
		})
	}

	var req submitLinkRequest
	if err := c.BodyParser(&req); err != nil || req.AccountLink == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountLink is required",
		})
	}

	recharge, err := h.rechargeService.SubmitLink(c.UserContext(), uint(id), userID, req.AccountLink)
	if err != nil {
		switch {
		case errors.Is(err, recharges.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Recharge request not found",
			})
		case errors.Is(err, recharges.ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Recharge request is not awaiting a link",
			})
		default:
			fiberlog.Errorf("failed to submit recharge link: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to submit link",
			})
		}
	}

	return c.JSON(recharge)
}
