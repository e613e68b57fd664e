package auth

import (
	"context"
	"fmt"

	"github.com/maiscreditos/creditshub/internal/models"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"gorm.io/gorm"
)

// ClerkAuthProvider verifies Clerk session tokens and resolves them to a
// local user profile, creating the profile row on first sight so a user who
// signed up before the Clerk webhook was configured still gets one.
type ClerkAuthProvider struct {
	secretKey string
	db        *gorm.DB
}

func NewClerkAuthProvider(secretKey string, db *gorm.DB) *ClerkAuthProvider {
	clerk.SetKey(secretKey)

	return &ClerkAuthProvider{
		secretKey: secretKey,
		db:        db,
	}
}

func (p *ClerkAuthProvider) ValidateToken(ctx context.Context, token string) (*AuthContext, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	profile, err := p.ensureProfile(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	return &AuthContext{
		UserID:  claims.Subject,
		Profile: profile,
		Claims:  claims,
	}, nil
}

func (p *ClerkAuthProvider) ensureProfile(ctx context.Context, clerkUserID string) (*models.UserProfile, error) {
	var profile models.UserProfile

	err := p.db.WithContext(ctx).
		Where("clerk_user_id = ?", clerkUserID).
		First(&profile).Error

	if err == gorm.ErrRecordNotFound {
		profile = models.UserProfile{ClerkUserID: clerkUserID}
		if err := p.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("failed to create user profile: %w", err)
		}
		return &profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}

	return &profile, nil
}
