package api

import (
	"errors"
	"strconv"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/accounts"
	"github.com/maiscreditos/creditshub/internal/services/plans"
	"github.com/maiscreditos/creditshub/internal/services/recharges"
	"github.com/maiscreditos/creditshub/internal/services/sync"
	"github.com/maiscreditos/creditshub/internal/services/tickets"
	"github.com/maiscreditos/creditshub/internal/services/users"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// AdminHandler groups the operator endpoints: plan management, account
// inventory, recharge fulfillment, user administration, support tickets and
// the Server B sync triggers. Everything here sits behind RequireAdmin.
type AdminHandler struct {
	planService     *plans.Service
	accountService  *accounts.Service
	rechargeService *recharges.Service
	userService     *users.Service
	ticketService   *tickets.Service
	syncService     *sync.Service
}

func NewAdminHandler(
	planService *plans.Service,
	accountService *accounts.Service,
	rechargeService *recharges.Service,
	userService *users.Service,
	ticketService *tickets.Service,
	syncService *sync.Service,
) *AdminHandler {
	return &AdminHandler{
		planService:     planService,
		accountService:  accountService,
		rechargeService: rechargeService,
		userService:     userService,
		ticketService:   ticketService,
		syncService:     syncService,
	}
}

// --- plans ---

func (h *AdminHandler) ListPlans(c *fiber.Ctx) error {
	list, err := h.planService.ListAll(c.UserContext())
	if err != nil {
		fiberlog.Errorf("failed to list plans: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load plans",
		})
	}
	return c.JSON(fiber.Map{"plans": list})
}

func (h *AdminHandler) CreatePlan(c *fiber.Ctx) error {
	var req models.PlanCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	plan, err := h.planService.Create(c.UserContext(), &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(plan)
}

func (h *AdminHandler) UpdatePlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan id",
		})
	}

	var req models.PlanUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	plan, err := h.planService.Update(c.UserContext(), uint(id), &req)
	if err != nil {
		if errors.Is(err, plans.ErrPlanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Plan not found",
			})
		}
		fiberlog.Errorf("failed to update plan %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update plan",
		})
	}

	return c.JSON(plan)
}

func (h *AdminHandler) DeletePlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan id",
		})
	}

	if err := h.planService.Delete(c.UserContext(), uint(id)); err != nil {
		if errors.Is(err, plans.ErrPlanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Plan not found",
			})
		}
		fiberlog.Errorf("failed to deactivate plan %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to deactivate plan",
		})
	}

	return c.JSON(fiber.Map{"deactivated": true})
}

// SyncPlansStripe re-creates missing Stripe products/prices for every
// active plan.
func (h *AdminHandler) SyncPlansStripe(c *fiber.Ctx) error {
	synced, err := h.planService.SyncAllStripe(c.UserContext())
	if err != nil {
		fiberlog.Errorf("stripe plan sync failed: %v", err)
		appErr := models.SanitizeError(err)
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
			"error": appErr,
		})
	}
	return c.JSON(fiber.Map{"synced": synced})
}

// --- account inventory ---

func (h *AdminHandler) ListAccounts(c *fiber.Ctx) error {
	var planID uint
	if raw := c.Query("planId"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid planId",
			})
		}
		planID = uint(parsed)
	}
	includeUsed := c.QueryBool("includeUsed", false)

	units, err := h.accountService.List(c.UserContext(), planID, includeUsed)
	if err != nil {
		fiberlog.Errorf("failed to list account units: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load account units",
		})
	}

	return c.JSON(fiber.Map{"accounts": units})
}

func (h *AdminHandler) AddAccount(c *fiber.Ctx) error {
	var req models.AccountUnitCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	unit, err := h.accountService.Add(c.UserContext(), &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(unit)
}

func (h *AdminHandler) DeleteAccount(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account unit id",
		})
	}

	if err := h.accountService.Delete(c.UserContext(), uint(id)); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *AdminHandler) GetStock(c *fiber.Ctx) error {
	stock, err := h.accountService.Stock(c.UserContext())
	if err != nil {
		fiberlog.Errorf("failed to count stock: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stock",
		})
	}
	return c.JSON(fiber.Map{"stock": stock})
}

// --- recharges ---

func (h *AdminHandler) ListRecharges(c *fiber.Ctx) error {
	status := models.RechargeStatus(c.Query("status"))

	list, err := h.rechargeService.ListByStatus(c.UserContext(), status)
	if err != nil {
		fiberlog.Errorf("failed to list recharges: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load recharge requests",
		})
	}

	return c.JSON(fiber.Map{"recharges": list})
}

type resolveRechargeRequest struct {
	Status models.RechargeStatus `json:"status"`
	Note   string                `json:"note"`
}

// ResolveRecharge marks a pending request completed or rejected.
func (h *AdminHandler) ResolveRecharge(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recharge id",
		})
	}

	var req resolveRechargeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	recharge, err := h.rechargeService.Resolve(c.UserContext(), uint(id), req.Status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, recharges.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Recharge request not found",
			})
		case errors.Is(err, recharges.ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			fiberlog.Errorf("failed to resolve recharge %d: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to resolve recharge",
			})
		}
	}

	return c.JSON(recharge)
}

// --- users ---

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.userService.List(c.UserContext(), limit, offset)
	if err != nil {
		fiberlog.Errorf("failed to list users: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load users",
		})
	}

	return c.JSON(fiber.Map{"users": list})
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	clerkUserID := c.Params("clerkUserId")
	if clerkUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Clerk user id is required",
		})
	}

	var req models.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := h.userService.Update(c.UserContext(), clerkUserID, &req)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		fiberlog.Errorf("failed to update user %s: %v", clerkUserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update user",
		})
	}

	return c.JSON(profile)
}

// --- tickets ---

func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	status := models.TicketStatus(c.Query("status"))

	list, err := h.ticketService.ListAll(c.UserContext(), status)
	if err != nil {
		fiberlog.Errorf("failed to list tickets: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load tickets",
		})
	}

	return c.JSON(fiber.Map{"tickets": list})
}

func (h *AdminHandler) ReplyTicket(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket id",
		})
	}

	var req ticketReplyRequest
	if err := c.BodyParser(&req); err != nil || req.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message body is required",
		})
	}

	ticket, err := h.ticketService.Reply(c.UserContext(), uint(id), models.TicketAuthorAdmin, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, tickets.ErrTicketNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Ticket not found",
			})
		case errors.Is(err, tickets.ErrTicketClosed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Ticket is closed",
			})
		default:
			fiberlog.Errorf("failed to reply to ticket %d: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to send message",
			})
		}
	}

	return c.JSON(ticket)
}

func (h *AdminHandler) CloseTicket(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket id",
		})
	}

	if err := h.ticketService.Close(c.UserContext(), uint(id)); err != nil {
		if errors.Is(err, tickets.ErrTicketNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Ticket not found",
			})
		}
		fiberlog.Errorf("failed to close ticket %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to close ticket",
		})
	}

	return c.JSON(fiber.Map{"closed": true})
}

// --- server b sync ---

// TriggerPlanSync pushes the current active plan catalog to Server B.
// Failures are queued for the retry scheduler, so the response only reports
// whether the push was accepted.
func (h *AdminHandler) TriggerPlanSync(c *fiber.Ctx) error {
	active, err := h.planService.ListActive(c.UserContext(), "")
	if err != nil {
		fiberlog.Errorf("failed to load plans for sync: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load plans",
		})
	}

	if err := h.syncService.SyncPlans(c.UserContext(), active); err != nil {
		fiberlog.Warnf("plan sync deferred: %v", err)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"queued": true,
		})
	}

	return c.JSON(fiber.Map{"synced": len(active)})
}

// TriggerUserSync pushes one user's profile to Server B.
func (h *AdminHandler) TriggerUserSync(c *fiber.Ctx) error {
	clerkUserID := c.Params("clerkUserId")
	if clerkUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Clerk user id is required",
		})
	}

	profile, err := h.userService.Get(c.UserContext(), clerkUserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		fiberlog.Errorf("failed to load user %s: %v", clerkUserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load user",
		})
	}

	if err := h.syncService.SyncUser(c.UserContext(), profile); err != nil {
		fiberlog.Warnf("user sync deferred: %v", err)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"queued": true,
		})
	}

	return c.JSON(fiber.Map{"synced": true})
}
