package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/coupons"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type Service struct {
	db      *gorm.DB
	coupons *coupons.Service
}

func NewService(db *gorm.DB, couponSvc *coupons.Service) *Service {
	return &Service{db: db, coupons: couponSvc}
}

// Provision creates the profile row for a freshly signed-up Clerk user.
// Safe to call more than once; an existing profile is updated in place.
func (s *Service) Provision(ctx context.Context, clerkUserID, email, name string) (*models.UserProfile, error) {
	var profile models.UserProfile

	err := s.db.WithContext(ctx).
		Where("clerk_user_id = ?", clerkUserID).
		First(&profile).Error

	if err == gorm.ErrRecordNotFound {
		profile = models.UserProfile{
			ClerkUserID: clerkUserID,
			Email:       email,
			Name:        name,
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		return &profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	updates := map[string]any{}
	if email != "" && profile.Email == "" {
		updates["email"] = email
	}
	if name != "" && profile.Name == "" {
		updates["name"] = name
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}

	return &profile, nil
}

func (s *Service) Get(ctx context.Context, clerkUserID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).
		Where("clerk_user_id = ?", clerkUserID).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.UserProfile, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var profiles []models.UserProfile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

func (s *Service) Update(ctx context.Context, clerkUserID string, req *models.UserUpdateRequest) (*models.UserProfile, error) {
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.IsAdmin != nil {
		updates["is_admin"] = *req.IsAdmin
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).Model(&models.UserProfile{}).
			Where("clerk_user_id = ?", clerkUserID).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update profile: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}

	return s.Get(ctx, clerkUserID)
}

// ApplyCoupon validates a code and stores it as the user's coupon
// association. The association applies to future purchases until cleared.
func (s *Service) ApplyCoupon(ctx context.Context, clerkUserID, code string) (*models.Discount, error) {
	if s.coupons == nil {
		return nil, fmt.Errorf("coupon validation is not configured")
	}

	discount, err := s.coupons.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	stripeCouponID, err := s.coupons.EnsureStripeCoupon(ctx, discount)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize stripe coupon: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("clerk_user_id = ?", clerkUserID).
		Updates(map[string]any{
			"coupon_code":      discount.Code,
			"stripe_coupon_id": stripeCouponID,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to store coupon association: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return discount, nil
}

// ClearCoupon removes the stored coupon association.
func (s *Service) ClearCoupon(ctx context.Context, clerkUserID string) error {
	result := s.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("clerk_user_id = ?", clerkUserID).
		Updates(map[string]any{
			"coupon_code":      "",
			"stripe_coupon_id": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to clear coupon association: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
