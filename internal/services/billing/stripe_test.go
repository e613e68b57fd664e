package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/accounts"
	"github.com/maiscreditos/creditshub/internal/services/recharges"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newStripeService(t *testing.T, db *gorm.DB) *StripeService {
	t.Helper()

	// No webhook secret: events are accepted unverified, as in development.
	return NewStripeService(
		models.StripeConfig{SecretKey: "sk_test"},
		db,
		NewLedger(db),
		nil,
		accounts.NewService(db),
		recharges.NewService(db),
	)
}

func seedPlan(t *testing.T, db *gorm.DB, planType models.PlanType, credits int64) *models.CreditPlan {
	t.Helper()
	plan := models.CreditPlan{
		Name:       "Test Plan",
		Credits:    credits,
		PriceCents: 5000,
		Type:       planType,
		Active:     true,
	}
	require.NoError(t, db.Create(&plan).Error)
	return &plan
}

func checkoutCompletedPayload(eventID, sessionID, userID string, planID uint) []byte {
	return fmt.Appendf(nil,
		`{"id":%q,"type":"checkout.session.completed","data":{"object":{"id":%q,"amount_total":5000,"metadata":{"user_id":%q,"plan_id":"%d","purchase_type":"new_account"}}}}`,
		eventID, sessionID, userID, planID)
}

func TestHandleWebhookCreditsAndAllocates(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)
	ctx := context.Background()

	seedProfile(t, db, "user_1", 0)
	plan := seedPlan(t, db, models.PlanTypeNewAccount, 100)
	require.NoError(t, db.Create(&models.AccountUnit{
		PlanID:      plan.ID,
		Credentials: "login:pass",
	}).Error)

	err := svc.HandleWebhook(ctx, checkoutCompletedPayload("evt_1", "cs_1", "user_1", plan.ID), "")
	require.NoError(t, err)

	var profile models.UserProfile
	require.NoError(t, db.Where("clerk_user_id = ?", "user_1").First(&profile).Error)
	assert.EqualValues(t, 100, profile.CreditBalance)

	var unit models.AccountUnit
	require.NoError(t, db.First(&unit).Error)
	assert.True(t, unit.Used)
	assert.Equal(t, "user_1", unit.AssignedTo)

	var event models.WebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_1").First(&event).Error)
	assert.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)
}

func TestHandleWebhookReplaySameEvent(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)
	ctx := context.Background()

	seedProfile(t, db, "user_1", 0)
	plan := seedPlan(t, db, models.PlanTypeRecharge, 50)

	payload := checkoutCompletedPayload("evt_dup", "cs_dup", "user_1", plan.ID)

	require.NoError(t, svc.HandleWebhook(ctx, payload, ""))
	require.NoError(t, svc.HandleWebhook(ctx, payload, ""))

	var profile models.UserProfile
	require.NoError(t, db.Where("clerk_user_id = ?", "user_1").First(&profile).Error)
	assert.EqualValues(t, 50, profile.CreditBalance)

	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHandleWebhookRedeliveryAfterFailureReprocesses(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)
	ctx := context.Background()

	plan := seedPlan(t, db, models.PlanTypeRecharge, 50)
	payload := checkoutCompletedPayload("evt_retry", "cs_retry", "user_1", plan.ID)

	// No profile row yet: the first delivery fails and records the error.
	require.Error(t, svc.HandleWebhook(ctx, payload, ""))

	var event models.WebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_retry").First(&event).Error)
	assert.NotEmpty(t, event.ProcessingError)

	// Stripe redelivers the same event id once the profile exists.
	seedProfile(t, db, "user_1", 0)
	require.NoError(t, svc.HandleWebhook(ctx, payload, ""))

	var profile models.UserProfile
	require.NoError(t, db.Where("clerk_user_id = ?", "user_1").First(&profile).Error)
	assert.EqualValues(t, 50, profile.CreditBalance)

	require.NoError(t, db.Where("provider_event_id = ?", "evt_retry").First(&event).Error)
	assert.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)

	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHandleWebhookNewEventIDSameSession(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)
	ctx := context.Background()

	seedProfile(t, db, "user_1", 0)
	plan := seedPlan(t, db, models.PlanTypeRecharge, 50)

	require.NoError(t, svc.HandleWebhook(ctx, checkoutCompletedPayload("evt_a", "cs_same", "user_1", plan.ID), ""))

	// Same session under a fresh event id still credits at most once.
	require.NoError(t, svc.HandleWebhook(ctx, checkoutCompletedPayload("evt_b", "cs_same", "user_1", plan.ID), ""))

	var profile models.UserProfile
	require.NoError(t, db.Where("clerk_user_id = ?", "user_1").First(&profile).Error)
	assert.EqualValues(t, 50, profile.CreditBalance)
}

func TestHandleWebhookMissingMetadata(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)
	ctx := context.Background()

	seedProfile(t, db, "user_1", 0)

	payload := []byte(`{"id":"evt_bad","type":"checkout.session.completed","data":{"object":{"id":"cs_bad","metadata":{}}}}`)
	err := svc.HandleWebhook(ctx, payload, "")
	assert.ErrorIs(t, err, ErrMissingMetadata)

	// Nothing was credited.
	var profile models.UserProfile
	require.NoError(t, db.Where("clerk_user_id = ?", "user_1").First(&profile).Error)
	assert.Zero(t, profile.CreditBalance)

	// The event is recorded with the failure for inspection.
	var event models.WebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_bad").First(&event).Error)
	assert.NotEmpty(t, event.ProcessingError)
}

func TestHandleWebhookUnknownPlan(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)

	err := svc.HandleWebhook(context.Background(), checkoutCompletedPayload("evt_np", "cs_np", "user_1", 999), "")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestHandleWebhookRechargeOpensRequest(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)
	ctx := context.Background()

	seedProfile(t, db, "user_1", 0)
	plan := seedPlan(t, db, models.PlanTypeRecharge, 200)

	require.NoError(t, svc.HandleWebhook(ctx, checkoutCompletedPayload("evt_r", "cs_r", "user_1", plan.ID), ""))

	var req models.RechargeRequest
	require.NoError(t, db.Where("stripe_session_id = ?", "cs_r").First(&req).Error)
	assert.Equal(t, models.RechargePendingLink, req.Status)
	assert.Equal(t, "user_1", req.ClerkUserID)
}

func TestHandleWebhookIgnoredEventType(t *testing.T) {
	db := newTestDB(t)
	svc := newStripeService(t, db)

	payload := []byte(`{"id":"evt_other","type":"invoice.paid","data":{"object":{}}}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, ""))

	var event models.WebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_other").First(&event).Error)
	assert.Equal(t, "invoice.paid", event.EventType)
}
