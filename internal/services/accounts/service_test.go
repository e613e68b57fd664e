package accounts

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
	require.NoError(t, db.AutoMigrate(&models.AccountUnit{}))
	return db
}

func TestAllocate(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	first, err := svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "first"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "second"})
	require.NoError(t, err)

	unit, err := svc.Allocate(ctx, 1, "user_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, unit.ID)
	assert.True(t, unit.Used)
	assert.Equal(t, "user_1", unit.AssignedTo)
	assert.NotNil(t, unit.AssignedAt)
}

func TestAllocateOutOfStock(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "only"})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, 1, "user_1")
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, 1, "user_2")
	assert.ErrorIs(t, err, ErrOutOfStock)

	// Other plans have no stock either.
	_, err = svc.Allocate(ctx, 2, "user_2")
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestDeleteOnlyUnused(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	unit, err := svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "creds"})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, 1, "user_1")
	require.NoError(t, err)

	err = svc.Delete(ctx, unit.ID)
	assert.Error(t, err)

	fresh, err := svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "creds2"})
	require.NoError(t, err)
	assert.NoError(t, svc.Delete(ctx, fresh.ID))
}

func TestStock(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "a"})
		require.NoError(t, err)
	}
	_, err := svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 2, Credentials: "b"})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, 1, "user_1")
	require.NoError(t, err)

	stock, err := svc.Stock(ctx)
	require.NoError(t, err)

	byPlan := map[uint]int64{}
	for _, s := range stock {
		byPlan[s.PlanID] = s.Available
	}
	assert.EqualValues(t, 2, byPlan[1])
	assert.EqualValues(t, 1, byPlan[2])
}

func TestListAssigned(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "mine"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, &models.AccountUnitCreateRequest{PlanID: 1, Credentials: "theirs"})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, 1, "user_1")
	require.NoError(t, err)
	_, err = svc.Allocate(ctx, 1, "user_2")
	require.NoError(t, err)

	mine, err := svc.ListAssigned(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Credentials)
}
