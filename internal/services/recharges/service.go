package recharges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maiscreditos/creditshub/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("recharge request not found")
	ErrInvalidTransition = errors.New("invalid recharge status transition")
)

// Service tracks recharge purchases from webhook-open to fulfillment.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Open records a fresh recharge purchase in pending_link. Opening twice for
// the same checkout session is a no-op, matching the webhook's at-most-once
// semantics.
func (s *Service) Open(ctx context.Context, clerkUserID string, planID uint, stripeSessionID string) (*models.RechargeRequest, error) {
	req := models.RechargeRequest{
		ClerkUserID:     clerkUserID,
		PlanID:          planID,
		Status:          models.RechargePendingLink,
		StripeSessionID: stripeSessionID,
	}

	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		if isDuplicateError(err) {
			var existing models.RechargeRequest
			if ferr := s.db.WithContext(ctx).
				Where("stripe_session_id = ?", stripeSessionID).
				First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, fmt.Errorf("failed to open recharge request: %w", err)
	}

	return &req, nil
}

// SubmitLink records the account link the buyer wants recharged and moves
// the request to pending.
func (s *Service) SubmitLink(ctx context.Context, id uint, clerkUserID, accountLink string) (*models.RechargeRequest, error) {
	if accountLink == "" {
		return nil, fmt.Errorf("account link is required")
	}

	var req models.RechargeRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND clerk_user_id = ?", id, clerkUserID).
			First(&req).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		if !req.Status.CanTransitionTo(models.RechargePending) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, models.RechargePending)
		}

		req.AccountLink = accountLink
		req.Status = models.RechargePending
		return tx.Save(&req).Error
	})
	if err != nil {
		return nil, err
	}

	return &req, nil
}

// Resolve completes or rejects a pending request (admin action).
func (s *Service) Resolve(ctx context.Context, id uint, status models.RechargeStatus, note string) (*models.RechargeRequest, error) {
	if status != models.RechargeCompleted && status != models.RechargeRejected {
		return nil, fmt.Errorf("%w: target %s", ErrInvalidTransition, status)
	}

	var req models.RechargeRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		if !req.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, status)
		}

		req.Status = status
		req.Note = note
		return tx.Save(&req).Error
	})
	if err != nil {
		return nil, err
	}

	return &req, nil
}

func (s *Service) ListForUser(ctx context.Context, clerkUserID string) ([]models.RechargeRequest, error) {
	var requests []models.RechargeRequest
	if err := s.db.WithContext(ctx).
		Where("clerk_user_id = ?", clerkUserID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list recharge requests: %w", err)
	}
	return requests, nil
}

func (s *Service) ListByStatus(ctx context.Context, status models.RechargeStatus) ([]models.RechargeRequest, error) {
	query := s.db.WithContext(ctx).Order("created_at ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.RechargeRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list recharge requests: %w", err)
	}
	return requests, nil
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
