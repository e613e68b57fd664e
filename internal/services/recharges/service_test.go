package recharges

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
	require.NoError(t, db.AutoMigrate(&models.RechargeRequest{}))
	return db
}

func TestOpenIsIdempotentPerSession(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	first, err := svc.Open(ctx, "user_1", 1, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, models.RechargePendingLink, first.Status)

	// A redelivered webhook opens nothing new.
	again, err := svc.Open(ctx, "user_1", 1, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.RechargeRequest{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSubmitLink(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	req, err := svc.Open(ctx, "user_1", 1, "cs_1")
	require.NoError(t, err)

	updated, err := svc.SubmitLink(ctx, req.ID, "user_1", "https://game.example/account/42")
	require.NoError(t, err)
	assert.Equal(t, models.RechargePending, updated.Status)
	assert.Equal(t, "https://game.example/account/42", updated.AccountLink)

	// Resubmitting after the transition is rejected.
	_, err = svc.SubmitLink(ctx, req.ID, "user_1", "https://game.example/account/43")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitLinkOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	req, err := svc.Open(ctx, "user_1", 1, "cs_1")
	require.NoError(t, err)

	// Someone else's request reads as not found.
	_, err = svc.SubmitLink(ctx, req.ID, "user_2", "https://link")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SubmitLink(ctx, 999, "user_1", "https://link")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	req, err := svc.Open(ctx, "user_1", 1, "cs_1")
	require.NoError(t, err)

	// A request still waiting for its link cannot be resolved.
	_, err = svc.Resolve(ctx, req.ID, models.RechargeCompleted, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.SubmitLink(ctx, req.ID, "user_1", "https://link")
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, req.ID, models.RechargeCompleted, "applied manually")
	require.NoError(t, err)
	assert.Equal(t, models.RechargeCompleted, resolved.Status)
	assert.Equal(t, "applied manually", resolved.Note)

	// Terminal states stay terminal.
	_, err = svc.Resolve(ctx, req.ID, models.RechargeRejected, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveRejectsInvalidTarget(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.Resolve(context.Background(), 1, models.RechargePending, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRechargeStatusTransitions(t *testing.T) {
	tests := []struct {
		from models.RechargeStatus
		to   models.RechargeStatus
		ok   bool
	}{
		{models.RechargePendingLink, models.RechargePending, true},
		{models.RechargePending, models.RechargeCompleted, true},
		{models.RechargePending, models.RechargeRejected, true},
		{models.RechargePendingLink, models.RechargeCompleted, false},
		{models.RechargeCompleted, models.RechargePending, false},
		{models.RechargeRejected, models.RechargeCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestListByStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	a, err := svc.Open(ctx, "user_1", 1, "cs_a")
	require.NoError(t, err)
	_, err = svc.Open(ctx, "user_2", 1, "cs_b")
	require.NoError(t, err)

	_, err = svc.SubmitLink(ctx, a.ID, "user_1", "https://link")
	require.NoError(t, err)

	pending, err := svc.ListByStatus(ctx, models.RechargePending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "user_1", pending[0].ClerkUserID)

	all, err := svc.ListByStatus(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
