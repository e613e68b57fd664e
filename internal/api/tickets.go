package api

import (
	"errors"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/auth"
	"github.com/maiscreditos/creditshub/internal/services/tickets"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type TicketsHandler struct {
	ticketService *tickets.Service
}

func NewTicketsHandler(ticketService *tickets.Service) *TicketsHandler {
	return &TicketsHandler{ticketService: ticketService}
}

// CreateTicket opens a new support thread with an initial message.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req models.TicketCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Subject == "" || req.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "subject and body are required",
		})
	}

	ticket, err := h.ticketService.Create(c.UserContext(), userID, &req)
	if err != nil {
		fiberlog.Errorf("failed to create ticket for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create ticket",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(ticket)
}

// ListMine returns the authenticated user's tickets, newest activity first.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	list, err := h.ticketService.ListForUser(c.UserContext(), userID)
	if err != nil {
		fiberlog.Errorf("failed to list tickets for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load tickets",
		})
	}

	return c.JSON(fiber.Map{
		"tickets": list,
	})
}

// GetTicket returns one ticket with its full message thread. Non-admin
// callers only see their own tickets.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket id",
		})
	}

	ticket, err := h.ticketService.Get(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, tickets.ErrTicketNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Ticket not found",
			})
		}
		fiberlog.Errorf("failed to load ticket %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load ticket",
		})
	}

	if ticket.ClerkUserID != userID && !auth.IsAdmin(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ticket not found",
		})
	}

	return c.JSON(ticket)
}

type ticketReplyRequest struct {
	Body string `json:"body"`
}

// Reply appends a message to the caller's own ticket.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

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

	ticket, err := h.ticketService.Get(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, tickets.ErrTicketNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Ticket not found",
			})
		}
		fiberlog.Errorf("failed to load ticket %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load ticket",
		})
	}
	if ticket.ClerkUserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ticket not found",
		})
	}

	updated, err := h.ticketService.Reply(c.UserContext(), uint(id), models.TicketAuthorUser, req.Body)
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

	return c.JSON(updated)
}
