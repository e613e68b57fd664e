package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maiscreditos/creditshub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrOutOfStock = errors.New("no unused account units for plan")

// Service manages the pre-provisioned credential inventory behind
// new-account plans.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Allocate hands the oldest unused unit of a plan to a buyer. The row is
// locked for the duration of the transaction so two concurrent completed
// checkouts cannot receive the same credentials.
func (s *Service) Allocate(ctx context.Context, planID uint, clerkUserID string) (*models.AccountUnit, error) {
	var unit models.AccountUnit

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plan_id = ? AND used = ?", planID, false).
			Order("created_at ASC").
			First(&unit).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOutOfStock
			}
			return fmt.Errorf("failed to lock account unit: %w", err)
		}

		now := time.Now()
		return tx.Model(&unit).Updates(map[string]any{
			"used":        true,
			"assigned_to": clerkUserID,
			"assigned_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return &unit, nil
}

func (s *Service) Add(ctx context.Context, req *models.AccountUnitCreateRequest) (*models.AccountUnit, error) {
	if req.PlanID == 0 || req.Credentials == "" {
		return nil, fmt.Errorf("plan_id and credentials are required")
	}

	unit := models.AccountUnit{
		PlanID:      req.PlanID,
		Credentials: req.Credentials,
	}
	if err := s.db.WithContext(ctx).Create(&unit).Error; err != nil {
		return nil, fmt.Errorf("failed to create account unit: %w", err)
	}
	return &unit, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND used = ?", id, false).
		Delete(&models.AccountUnit{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete account unit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account unit %d not found or already assigned", id)
	}
	return nil
}

func (s *Service) List(ctx context.Context, planID uint, includeUsed bool) ([]models.AccountUnit, error) {
	query := s.db.WithContext(ctx).Order("created_at ASC")
	if planID > 0 {
		query = query.Where("plan_id = ?", planID)
	}
	if !includeUsed {
		query = query.Where("used = ?", false)
	}

	var units []models.AccountUnit
	if err := query.Find(&units).Error; err != nil {
		return nil, fmt.Errorf("failed to list account units: %w", err)
	}
	return units, nil
}

// ListAssigned returns the units a buyer has received, for the dashboard.
func (s *Service) ListAssigned(ctx context.Context, clerkUserID string) ([]models.AccountUnit, error) {
	var units []models.AccountUnit
	if err := s.db.WithContext(ctx).
		Where("assigned_to = ?", clerkUserID).
		Order("assigned_at DESC").
		Find(&units).Error; err != nil {
		return nil, fmt.Errorf("failed to list assigned units: %w", err)
	}
	return units, nil
}

// Stock reports available unit counts per plan for the storefront.
func (s *Service) Stock(ctx context.Context) ([]models.PlanStock, error) {
	var stock []models.PlanStock
	err := s.db.WithContext(ctx).
		Model(&models.AccountUnit{}).
		Select("plan_id, count(*) as available").
		Where("used = ?", false).
		Group("plan_id").
		Scan(&stock).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count stock: %w", err)
	}
	return stock, nil
}
