package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/coupon"
	"golang.org/x/sync/singleflight"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrCouponInactive = errors.New("coupon is not active")
)

const (
	validateRPCPath = "/rest/v1/rpc/validate_coupon"
	cacheKeyPrefix  = "coupon:"
	stripeIDPrefix  = "creditshub-"
)

// Service fronts the hosted coupon validation RPC. The endpoint, anonymous
// key and product id are injected once through config instead of being
// repeated at every call site.
type Service struct {
	client   *services.Client
	cfg      models.CouponRPCConfig
	redis    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
}

func NewService(cfg models.CouponRPCConfig, redisClient *redis.Client) *Service {
	clientCfg := services.DefaultClientConfig(cfg.BaseURL)
	if cfg.TimeoutSecs > 0 {
		clientCfg.Timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}

	cacheTTL := 5 * time.Minute
	if cfg.CacheTTLSecs > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSecs) * time.Second
	}

	return &Service{
		client:   services.NewClientWithConfig(clientCfg),
		cfg:      cfg,
		redis:    redisClient,
		cacheTTL: cacheTTL,
	}
}

type validateRequest struct {
	CouponCode string `json:"p_coupon_code"`
	ProductID  string `json:"p_product_id"`
}

type validateResult struct {
	CouponID    string `json:"coupon_id"`
	IsActive    bool   `json:"is_active"`
	Type        string `json:"type"`
	Value       int64  `json:"value"`
	AffiliateID string `json:"affiliate_id"`
}

// Validate resolves a coupon code to a discount descriptor. Results are
// cached in Redis and concurrent lookups for the same code are collapsed.
// Inactive or unknown codes return an error; the caller decides whether
// that blocks the purchase (it never does on the checkout path).
func (s *Service) Validate(ctx context.Context, code string) (*models.Discount, error) {
	if code == "" {
		return nil, ErrCouponNotFound
	}

	if cached := s.fromCache(ctx, code); cached != nil {
		if !cached.IsActive {
			return nil, ErrCouponInactive
		}
		return cached, nil
	}

	v, err, _ := s.group.Do(code, func() (any, error) {
		return s.validateRemote(ctx, code)
	})
	if err != nil {
		return nil, err
	}

	discount := v.(*models.Discount)
	s.toCache(ctx, code, discount)

	if !discount.IsActive {
		return nil, ErrCouponInactive
	}
	return discount, nil
}

func (s *Service) validateRemote(ctx context.Context, code string) (*models.Discount, error) {
	req := validateRequest{
		CouponCode: code,
		ProductID:  s.cfg.ProductID,
	}

	opts := &services.RequestOptions{
		Context: ctx,
		Headers: map[string]string{
			"apikey":        s.cfg.AnonKey,
			"Authorization": "Bearer " + s.cfg.AnonKey,
		},
	}

	// The RPC returns a single object or a one-element array depending on
	// the function version deployed.
	var raw json.RawMessage
	if err := s.client.Post(validateRPCPath, req, &raw, opts); err != nil {
		return nil, models.NewUpstreamError("coupon_rpc", "validation call failed", err)
	}

	result, err := decodeValidateResult(raw)
	if err != nil {
		return nil, err
	}
	if result == nil || result.CouponID == "" {
		return nil, ErrCouponNotFound
	}

	return &models.Discount{
		CouponID:    result.CouponID,
		Code:        code,
		IsActive:    result.IsActive,
		Type:        models.DiscountType(result.Type),
		Value:       result.Value,
		AffiliateID: result.AffiliateID,
	}, nil
}

func decodeValidateResult(raw json.RawMessage) (*validateResult, error) {
	if len(raw) == 0 {
		return nil, ErrCouponNotFound
	}

	var list []validateResult
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, ErrCouponNotFound
		}
		return &list[0], nil
	}

	var single validateResult
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("unexpected coupon validation response: %w", err)
	}
	return &single, nil
}

// EnsureStripeCoupon retrieves or creates the Stripe coupon object matching
// a validated discount. The Stripe coupon id is derived from the stable
// external coupon id so repeated checkouts reuse the same object.
func (s *Service) EnsureStripeCoupon(ctx context.Context, discount *models.Discount) (string, error) {
	stripeID := stripeIDPrefix + discount.CouponID

	existing, err := coupon.Get(stripeID, nil)
	if err == nil && existing != nil {
		return existing.ID, nil
	}

	params := &stripe.CouponParams{
		ID:       stripe.String(stripeID),
		Name:     stripe.String(discount.Code),
		Duration: stripe.String(string(stripe.CouponDurationForever)),
	}
	switch discount.Type {
	case models.DiscountPercentage:
		params.PercentOff = stripe.Float64(float64(discount.Value))
	case models.DiscountFixed:
		params.AmountOff = stripe.Int64(discount.Value * 100)
		params.Currency = stripe.String(string(stripe.CurrencyBRL))
	default:
		return "", fmt.Errorf("unsupported discount type: %s", discount.Type)
	}

	created, err := coupon.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe coupon: %w", err)
	}

	return created.ID, nil
}

func (s *Service) fromCache(ctx context.Context, code string) *models.Discount {
	if s.redis == nil {
		return nil
	}

	data, err := s.redis.Get(ctx, cacheKeyPrefix+code).Bytes()
	if err != nil {
		if err != redis.Nil {
			fiberlog.Debugf("coupon cache read failed: %v", err)
		}
		return nil
	}

	var discount models.Discount
	if err := json.Unmarshal(data, &discount); err != nil {
		return nil
	}
	return &discount
}

func (s *Service) toCache(ctx context.Context, code string, discount *models.Discount) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(discount)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKeyPrefix+code, data, s.cacheTTL).Err(); err != nil {
		fiberlog.Debugf("coupon cache write failed: %v", err)
	}
}
