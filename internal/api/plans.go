package api

import (
	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/accounts"
	"github.com/maiscreditos/creditshub/internal/services/plans"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type PlansHandler struct {
	planService    *plans.Service
	accountService *accounts.Service
}

func NewPlansHandler(planService *plans.Service, accountService *accounts.Service) *PlansHandler {
	return &PlansHandler{
		planService:    planService,
		accountService: accountService,
	}
}

// ListPlans returns active plans for the storefront, with available stock
// for new-account plans.
func (h *PlansHandler) ListPlans(c *fiber.Ctx) error {
	planType := models.PlanType(c.Query("type"))
	if planType != "" && !planType.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be new_account or recharge",
		})
	}

	planList, err := h.planService.ListActive(c.UserContext(), planType)
	if err != nil {
		fiberlog.Errorf("failed to list plans: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load plans",
		})
	}

	stock, err := h.accountService.Stock(c.UserContext())
	if err != nil {
		fiberlog.Warnf("failed to load stock counts: %v", err)
		stock = nil
	}

	stockByPlan := make(map[uint]int64, len(stock))
	for _, s := range stock {
		stockByPlan[s.PlanID] = s.Available
	}

	type planView struct {
		models.CreditPlan
		Available *int64 `json:"available,omitempty"`
	}

	views := make([]planView, 0, len(planList))
	for _, p := range planList {
		view := planView{CreditPlan: p}
		if p.Type == models.PlanTypeNewAccount {
			available := stockByPlan[p.ID]
			view.Available = &available
		}
		views = append(views, view)
	}

	return c.JSON(fiber.Map{
		"plans": views,
	})
}
