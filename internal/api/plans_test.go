package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/accounts"
	"github.com/maiscreditos/creditshub/internal/services/plans"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPlansApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	handler := NewPlansHandler(plans.NewService(db), accounts.NewService(db))

	app := fiber.New()
	app.Get("/api/plans", handler.ListPlans)
	return app
}

func TestListPlansWithStock(t *testing.T) {
	db := newTestDB(t)
	app := newPlansApp(t, db)

	newAccount := models.CreditPlan{Name: "Starter", Credits: 100, PriceCents: 5000, Type: models.PlanTypeNewAccount, Active: true}
	recharge := models.CreditPlan{Name: "Top-up", Credits: 50, PriceCents: 2500, Type: models.PlanTypeRecharge, Active: true}
	inactive := models.CreditPlan{Name: "Old", Credits: 10, PriceCents: 1000, Type: models.PlanTypeRecharge, Active: false}
	require.NoError(t, db.Create(&newAccount).Error)
	require.NoError(t, db.Create(&recharge).Error)
	require.NoError(t, db.Create(&inactive).Error)

	// The inactive flag must survive the insert; a column default would
	// overwrite the zero value.
	var stored models.CreditPlan
	require.NoError(t, db.First(&stored, inactive.ID).Error)
	require.False(t, stored.Active)

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&models.AccountUnit{PlanID: newAccount.ID, Credentials: "c"}).Error)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed struct {
		Plans []struct {
			Name      string `json:"name"`
			Type      string `json:"type"`
			Available *int64 `json:"available"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))
	require.Len(t, parsed.Plans, 2)

	byName := map[string]*int64{}
	for _, p := range parsed.Plans {
		byName[p.Name] = p.Available
	}

	// New-account plans report stock; recharge plans do not carry the field.
	require.NotNil(t, byName["Starter"])
	assert.EqualValues(t, 2, *byName["Starter"])
	assert.Nil(t, byName["Top-up"])
}

func TestListPlansRejectsUnknownType(t *testing.T) {
	db := newTestDB(t)
	app := newPlansApp(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/plans?type=bogus", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListPlansFilterByType(t *testing.T) {
	db := newTestDB(t)
	app := newPlansApp(t, db)

	require.NoError(t, db.Create(&models.CreditPlan{Name: "Starter", Credits: 100, PriceCents: 5000, Type: models.PlanTypeNewAccount, Active: true}).Error)
	require.NoError(t, db.Create(&models.CreditPlan{Name: "Top-up", Credits: 50, PriceCents: 2500, Type: models.PlanTypeRecharge, Active: true}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/plans?type=recharge", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed struct {
		Plans []struct {
			Name string `json:"name"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))
	require.Len(t, parsed.Plans, 1)
	assert.Equal(t, "Top-up", parsed.Plans[0].Name)
}
