package users

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserProfile{}))
	return db
}

func TestProvision(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	profile, err := svc.Provision(ctx, "user_1", "a@example.com", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", profile.Email)
	assert.Zero(t, profile.CreditBalance)
	assert.False(t, profile.IsAdmin)

	// Provisioning again returns the same row and keeps existing fields.
	again, err := svc.Provision(ctx, "user_1", "other@example.com", "Other")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)
	assert.Equal(t, "a@example.com", again.Email)

	var count int64
	require.NoError(t, db.Model(&models.UserProfile{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProvisionFillsMissingFields(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	_, err := svc.Provision(ctx, "user_1", "", "")
	require.NoError(t, err)

	profile, err := svc.Provision(ctx, "user_1", "late@example.com", "Late Name")
	require.NoError(t, err)

	reloaded, err := svc.Get(ctx, profile.ClerkUserID)
	require.NoError(t, err)
	assert.Equal(t, "late@example.com", reloaded.Email)
	assert.Equal(t, "Late Name", reloaded.Name)
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	_, err := svc.Provision(ctx, "user_1", "a@example.com", "Ana")
	require.NoError(t, err)

	name := "Ana Silva"
	isAdmin := true
	updated, err := svc.Update(ctx, "user_1", &models.UserUpdateRequest{
		Name:    &name,
		IsAdmin: &isAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", updated.Name)
	assert.True(t, updated.IsAdmin)

	_, err = svc.Update(ctx, "ghost", &models.UserUpdateRequest{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestClearCoupon(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.UserProfile{
		ClerkUserID:    "user_1",
		CouponCode:     "PROMO20",
		StripeCouponID: "creditshub-c1",
	}).Error)

	require.NoError(t, svc.ClearCoupon(ctx, "user_1"))

	profile, err := svc.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Empty(t, profile.CouponCode)
	assert.Empty(t, profile.StripeCouponID)

	assert.ErrorIs(t, svc.ClearCoupon(ctx, "ghost"), ErrUserNotFound)
}
