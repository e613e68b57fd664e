package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/accounts"
	"github.com/maiscreditos/creditshub/internal/services/coupons"
	"github.com/maiscreditos/creditshub/internal/services/recharges"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature = errors.New("failed to verify webhook signature")
	ErrMissingMetadata  = errors.New("missing user_id or plan_id in session metadata")
	ErrPlanNotFound     = errors.New("plan not found")
)

type StripeService struct {
	secretKey     string
	webhookSecret string
	returnURL     string
	db            *gorm.DB
	ledger        *Ledger
	coupons       *coupons.Service
	accounts      *accounts.Service
	recharges     *recharges.Service
}

func NewStripeService(cfg models.StripeConfig, db *gorm.DB, ledger *Ledger, couponSvc *coupons.Service, accountSvc *accounts.Service, rechargeSvc *recharges.Service) *StripeService {
	stripe.Key = cfg.SecretKey

	return &StripeService{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		returnURL:     cfg.ReturnURL,
		db:            db,
		ledger:        ledger,
		coupons:       couponSvc,
		accounts:      accountSvc,
		recharges:     rechargeSvc,
	}
}

// CreateCheckoutParams carries an authenticated purchase intent.
type CreateCheckoutParams struct {
	Profile      *models.UserProfile
	PriceID      string
	PlanID       uint
	PurchaseType models.PlanType
	CouponCode   string
}

// CreateCheckoutSession creates an embedded-mode checkout session and
// returns its client secret. Coupon resolution is best effort: a failed
// validation or Stripe coupon creation never blocks the purchase.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (string, error) {
	var plan models.CreditPlan
	if err := s.db.WithContext(ctx).First(&plan, params.PlanID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrPlanNotFound
		}
		return "", fmt.Errorf("failed to load plan: %w", err)
	}
	if !plan.Active {
		return "", ErrPlanNotFound
	}
	if plan.StripePriceID != "" && plan.StripePriceID != params.PriceID {
		return "", fmt.Errorf("price %s does not belong to plan %d", params.PriceID, plan.ID)
	}

	couponID, couponCode := s.resolveCoupon(ctx, params)

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:      stripe.String(string(stripe.CheckoutSessionModePayment)),
		UIMode:    stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		ReturnURL: stripe.String(s.returnURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id":       params.Profile.ClerkUserID,
			"plan_id":       strconv.FormatUint(uint64(plan.ID), 10),
			"purchase_type": string(params.PurchaseType),
			"coupon_code":   couponCode,
		},
	}

	if params.Profile.Email != "" {
		sessionParams.CustomerEmail = stripe.String(params.Profile.Email)
	}

	if couponID != "" {
		sessionParams.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(couponID)},
		}
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.ClientSecret, nil
}

// resolveCoupon picks the discount for a checkout: an explicitly supplied
// code wins; otherwise the user's stored coupon association applies until
// cleared. Returns empty values when nothing usable resolves.
func (s *StripeService) resolveCoupon(ctx context.Context, params CreateCheckoutParams) (couponID, couponCode string) {
	if params.CouponCode != "" && s.coupons != nil {
		discount, err := s.coupons.Validate(ctx, params.CouponCode)
		if err != nil {
			fiberlog.Warnf("coupon %q not applied: %v", params.CouponCode, err)
			return "", ""
		}

		id, err := s.coupons.EnsureStripeCoupon(ctx, discount)
		if err != nil {
			fiberlog.Warnf("stripe coupon for %q not created: %v", params.CouponCode, err)
			return "", ""
		}

		// Remember the association so future purchases keep the discount
		// until the user clears it.
		if err := s.db.WithContext(ctx).Model(&models.UserProfile{}).
			Where("clerk_user_id = ?", params.Profile.ClerkUserID).
			Updates(map[string]any{
				"coupon_code":      discount.Code,
				"stripe_coupon_id": id,
			}).Error; err != nil {
			fiberlog.Warnf("failed to store coupon association: %v", err)
		}

		return id, discount.Code
	}

	if params.Profile.StripeCouponID != "" {
		return params.Profile.StripeCouponID, params.Profile.CouponCode
	}

	return "", ""
}

// HandleWebhook processes a raw Stripe webhook delivery. Events are recorded
// under the provider event id before any side effect; a redelivery of a
// successfully processed event stops at the unique index, while a redelivery
// of a failed one runs again, since provider redelivery is the retry path.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, signatureValid, err := s.parseEvent(payload, signature)
	if err != nil {
		return err
	}

	fresh, err := s.recordEvent(ctx, event, payload, signatureValid)
	if err != nil {
		return err
	}
	if !fresh {
		fiberlog.Infof("stripe event %s already processed, skipping", event.ID)
		return nil
	}

	var procErr error
	switch event.Type {
	case "checkout.session.completed":
		procErr = s.handleCheckoutCompleted(ctx, event)
	default:
		// Other event types are acknowledged and ignored.
	}

	s.finishEvent(ctx, event.ID, procErr)
	return procErr
}

func (s *StripeService) parseEvent(payload []byte, signature string) (stripe.Event, bool, error) {
	if s.webhookSecret != "" {
		event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
		if err != nil {
			return stripe.Event{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return event, true, nil
	}

	// Development fallback: no signing secret configured.
	fiberlog.Warn("stripe webhook secret not configured, accepting unverified payload")

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, false, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	return event, false, nil
}

// recordEvent inserts the dedupe row. Returns false only when the event id
// was seen before and its processing succeeded; a redelivered event whose
// first attempt failed is handed back for reprocessing. Crediting itself
// stays at-most-once through the unique session id on PaymentTransaction.
func (s *StripeService) recordEvent(ctx context.Context, event stripe.Event, payload []byte, signatureValid bool) (bool, error) {
	row := models.WebhookEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		Payload:         string(payload),
		SignatureValid:  signatureValid,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if !isDuplicateError(err) {
			return false, fmt.Errorf("failed to record webhook event: %w", err)
		}

		var existing models.WebhookEvent
		if err := s.db.WithContext(ctx).
			Where("provider = ? AND provider_event_id = ?", "stripe", event.ID).
			First(&existing).Error; err != nil {
			return false, fmt.Errorf("failed to load webhook event %s: %w", event.ID, err)
		}
		if existing.ProcessedAt == nil || existing.ProcessingError != "" {
			return true, nil
		}
		return false, nil
	}

	return true, nil
}

func (s *StripeService) finishEvent(ctx context.Context, eventID string, procErr error) {
	// Clearing processing_error matters on a retried delivery that succeeded.
	updates := map[string]any{"processed_at": time.Now(), "processing_error": ""}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	}

	if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", "stripe", eventID).
		Updates(updates).Error; err != nil {
		fiberlog.Errorf("failed to mark webhook event %s: %v", eventID, err)
	}
}

func (s *StripeService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := sess.Metadata["user_id"]
	planIDStr := sess.Metadata["plan_id"]
	if userID == "" || planIDStr == "" {
		return ErrMissingMetadata
	}

	planID, err := strconv.ParseUint(planIDStr, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: bad plan_id %q", ErrMissingMetadata, planIDStr)
	}

	var plan models.CreditPlan
	if err := s.db.WithContext(ctx).First(&plan, uint(planID)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrPlanNotFound
		}
		return fmt.Errorf("failed to load plan: %w", err)
	}

	_, err = s.ledger.AddCredits(ctx, models.AddCreditsParams{
		ClerkUserID:     userID,
		PlanID:          plan.ID,
		PlanType:        plan.Type,
		Credits:         plan.Credits,
		AmountCents:     sess.AmountTotal,
		CouponCode:      sess.Metadata["coupon_code"],
		StripeSessionID: sess.ID,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSession) {
			fiberlog.Infof("session %s already credited, skipping", sess.ID)
			return nil
		}
		return fmt.Errorf("failed to add credits: %w", err)
	}

	switch plan.Type {
	case models.PlanTypeNewAccount:
		if _, err := s.accounts.Allocate(ctx, plan.ID, userID); err != nil {
			// Credits are already booked; surface the inventory problem for
			// support instead of failing the whole event.
			fiberlog.Errorf("failed to allocate account unit for session %s: %v", sess.ID, err)
		}
	case models.PlanTypeRecharge:
		if _, err := s.recharges.Open(ctx, userID, plan.ID, sess.ID); err != nil {
			fiberlog.Errorf("failed to open recharge request for session %s: %v", sess.ID, err)
		}
	}

	fiberlog.Infof("credited %d credits to %s for session %s", plan.Credits, userID, sess.ID)
	return nil
}
