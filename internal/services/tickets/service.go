package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/maiscreditos/creditshub/internal/models"

	"gorm.io/gorm"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClosed   = errors.New("ticket is closed")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, clerkUserID string, req *models.TicketCreateRequest) (*models.SupportTicket, error) {
	if req.Subject == "" || req.Body == "" {
		return nil, fmt.Errorf("subject and body are required")
	}

	ticket := models.SupportTicket{
		ClerkUserID: clerkUserID,
		Subject:     req.Subject,
		Status:      models.TicketOpen,
		Messages: []models.TicketMessage{
			{Author: models.TicketAuthorUser, Body: req.Body},
		},
	}

	if err := s.db.WithContext(ctx).Create(&ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	return &ticket, nil
}

// Reply appends a message. A user reply reopens the thread; an admin reply
// marks it answered. Closed tickets reject new messages.
func (s *Service) Reply(ctx context.Context, ticketID uint, author models.TicketAuthor, body string) (*models.SupportTicket, error) {
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	var ticket models.SupportTicket

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&ticket, ticketID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrTicketNotFound
			}
			return err
		}

		if ticket.Status == models.TicketClosed {
			return ErrTicketClosed
		}

		msg := models.TicketMessage{
			TicketID: ticket.ID,
			Author:   author,
			Body:     body,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}

		status := models.TicketOpen
		if author == models.TicketAuthorAdmin {
			status = models.TicketAnswered
		}
		return tx.Model(&ticket).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, ticketID)
}

func (s *Service) Close(ctx context.Context, ticketID uint) error {
	result := s.db.WithContext(ctx).Model(&models.SupportTicket{}).
		Where("id = ?", ticketID).
		Update("status", models.TicketClosed)
	if result.Error != nil {
		return fmt.Errorf("failed to close ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (s *Service) Get(ctx context.Context, ticketID uint) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&ticket, ticketID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	return &ticket, nil
}

func (s *Service) ListForUser(ctx context.Context, clerkUserID string) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	if err := s.db.WithContext(ctx).
		Where("clerk_user_id = ?", clerkUserID).
		Order("updated_at DESC").
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (s *Service) ListAll(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error) {
	query := s.db.WithContext(ctx).Order("updated_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var tickets []models.SupportTicket
	if err := query.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}
