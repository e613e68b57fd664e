package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/maiscreditos/creditshub/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/price"
	"github.com/stripe/stripe-go/v81/product"
	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan not found")

// Service manages credit plans and keeps their Stripe product/price
// references in step. Stripe failures never block a plan save; the refs are
// filled in on the next successful sync.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, req *models.PlanCreateRequest) (*models.CreditPlan, error) {
	if req.Name == "" || req.Credits <= 0 || req.PriceCents <= 0 {
		return nil, fmt.Errorf("name, credits and price_cents are required")
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("invalid plan type: %s", req.Type)
	}

	plan := models.CreditPlan{
		Name:        req.Name,
		Description: req.Description,
		Credits:     req.Credits,
		PriceCents:  req.PriceCents,
		Type:        req.Type,
		Active:      true,
		SortOrder:   req.SortOrder,
	}

	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	if err := s.SyncStripe(ctx, &plan); err != nil {
		fiberlog.Warnf("stripe sync for new plan %d failed: %v", plan.ID, err)
	}

	return &plan, nil
}

func (s *Service) Update(ctx context.Context, id uint, req *models.PlanUpdateRequest) (*models.CreditPlan, error) {
	var plan models.CreditPlan
	if err := s.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	priceChanged := false

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.Credits != nil {
		plan.Credits = *req.Credits
	}
	if req.PriceCents != nil && *req.PriceCents != plan.PriceCents {
		plan.PriceCents = *req.PriceCents
		priceChanged = true
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}
	if req.SortOrder != nil {
		plan.SortOrder = *req.SortOrder
	}

	if err := s.db.WithContext(ctx).Save(&plan).Error; err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	if priceChanged || plan.StripePriceID == "" {
		if err := s.SyncStripe(ctx, &plan); err != nil {
			fiberlog.Warnf("stripe sync for plan %d failed: %v", plan.ID, err)
		}
	}

	return &plan, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.CreditPlan, error) {
	var plan models.CreditPlan
	if err := s.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

// ListActive returns storefront plans, optionally filtered by type.
func (s *Service) ListActive(ctx context.Context, planType models.PlanType) ([]models.CreditPlan, error) {
	query := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order ASC, id ASC")
	if planType != "" {
		query = query.Where("type = ?", planType)
	}

	var plans []models.CreditPlan
	if err := query.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// ListAll returns every plan for the back office.
func (s *Service) ListAll(ctx context.Context) ([]models.CreditPlan, error) {
	var plans []models.CreditPlan
	if err := s.db.WithContext(ctx).
		Order("sort_order ASC, id ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	// Plans referenced by transactions must stay resolvable; deactivate
	// instead of deleting.
	result := s.db.WithContext(ctx).Model(&models.CreditPlan{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// SyncStripe ensures the plan has a live Stripe product and price. A price
// change archives the old price and creates a fresh one, since Stripe
// prices are immutable.
func (s *Service) SyncStripe(ctx context.Context, plan *models.CreditPlan) error {
	if plan.StripeProductID == "" {
		prod, err := product.New(&stripe.ProductParams{
			Name:        stripe.String(plan.Name),
			Description: stripe.String(plan.Description),
		})
		if err != nil {
			return models.NewUpstreamError("stripe", "failed to create product", err)
		}
		plan.StripeProductID = prod.ID
	}

	if plan.StripePriceID != "" {
		current, err := price.Get(plan.StripePriceID, nil)
		if err == nil && current.UnitAmount == plan.PriceCents {
			return nil
		}
		if err == nil {
			if _, err := price.Update(plan.StripePriceID, &stripe.PriceParams{
				Active: stripe.Bool(false),
			}); err != nil {
				fiberlog.Warnf("failed to archive stripe price %s: %v", plan.StripePriceID, err)
			}
		}
	}

	newPrice, err := price.New(&stripe.PriceParams{
		Product:    stripe.String(plan.StripeProductID),
		UnitAmount: stripe.Int64(plan.PriceCents),
		Currency:   stripe.String(string(stripe.CurrencyBRL)),
		Nickname:   stripe.String(plan.Name),
	})
	if err != nil {
		return models.NewUpstreamError("stripe", "failed to create price", err)
	}
	plan.StripePriceID = newPrice.ID

	return s.db.WithContext(ctx).Model(&models.CreditPlan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]any{
			"stripe_product_id": plan.StripeProductID,
			"stripe_price_id":   plan.StripePriceID,
		}).Error
}

// SyncAllStripe re-syncs every plan, used by the admin re-sync action.
func (s *Service) SyncAllStripe(ctx context.Context) (int, error) {
	plans, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i := range plans {
		if err := s.SyncStripe(ctx, &plans[i]); err != nil {
			fiberlog.Warnf("stripe sync for plan %d failed: %v", plans[i].ID, err)
			continue
		}
		synced++
	}
	return synced, nil
}
