package api

import (
	"errors"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/auth"
	"github.com/maiscreditos/creditshub/internal/services/billing"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type BillingHandler struct {
	stripeService *billing.StripeService
	ledger        *billing.Ledger
	signedOnly    bool
}

func NewBillingHandler(stripeService *billing.StripeService, ledger *billing.Ledger, requireSignature bool) *BillingHandler {
	return &BillingHandler{
		stripeService: stripeService,
		ledger:        ledger,
		signedOnly:    requireSignature,
	}
}

// CreateCheckoutSessionRequest represents the request body for creating a checkout session
type CreateCheckoutSessionRequest struct {
	PriceID      string `json:"priceId"`
	PlanID       uint   `json:"planId"`
	PurchaseType string `json:"purchaseType"`
	CouponCode   string `json:"couponCode,omitempty"`
}

// CreateCheckoutSession creates an embedded checkout session for the
// authenticated user and returns its client secret.
func (h *BillingHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	profile, ok := auth.GetProfile(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req CreateCheckoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.PriceID == "" || req.PlanID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "priceId and planId are required",
		})
	}

	purchaseType := models.PlanType(req.PurchaseType)
	if !purchaseType.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "purchaseType must be new_account or recharge",
		})
	}

	clientSecret, err := h.stripeService.CreateCheckoutSession(c.UserContext(), billing.CreateCheckoutParams{
		Profile:      profile,
		PriceID:      req.PriceID,
		PlanID:       req.PlanID,
		PurchaseType: purchaseType,
		CouponCode:   req.CouponCode,
	})
	if err != nil {
		if errors.Is(err, billing.ErrPlanNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Plan not found",
			})
		}
		fiberlog.Errorf("checkout session creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create checkout session",
		})
	}

	return c.JSON(fiber.Map{
		"clientSecret": clientSecret,
	})
}

// HandleStripeWebhook processes Stripe webhook events
func (h *BillingHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	if len(payload) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Empty request body",
		})
	}

	signature := c.Get("Stripe-Signature")
	if h.signedOnly && signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing Stripe-Signature header",
		})
	}

	if err := h.stripeService.HandleWebhook(c.UserContext(), payload, signature); err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature),
			errors.Is(err, billing.ErrMissingMetadata),
			errors.Is(err, billing.ErrPlanNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			fiberlog.Errorf("stripe webhook processing failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to process webhook",
			})
		}
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}

// GetTransactions lists the authenticated user's purchase history.
func (h *BillingHandler) GetTransactions(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	transactions, err := h.ledger.GetTransactionHistory(c.UserContext(), userID, limit, offset)
	if err != nil {
		fiberlog.Errorf("failed to load transactions for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load transactions",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
	})
}
