package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services"
	"github.com/maiscreditos/creditshub/internal/services/circuitbreaker"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	EndpointSyncPlans       = "/sync-plans"
	EndpointSyncUnifiedData = "/sync-unified-data"

	defaultMaxAttempts = 5
)

var ErrCircuitOpen = errors.New("server b circuit is open")

// Service pushes plan and user payloads to the secondary system of record.
// Delivery is best effort: a failure is queued for the retry scheduler and
// never propagates to the admin or purchase flow that triggered it.
type Service struct {
	client      *services.Client
	cfg         models.ServerBConfig
	cb          *circuitbreaker.CircuitBreaker
	db          *gorm.DB
	maxAttempts int
}

func NewService(cfg models.ServerBConfig, db *gorm.DB, redisClient *redis.Client) *Service {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		client:      services.NewClient(cfg.BaseURL),
		cfg:         cfg,
		cb:          circuitbreaker.NewForService(redisClient, "server_b"),
		db:          db,
		maxAttempts: maxAttempts,
	}
}

type planPayload struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Credits    int64           `json:"credits"`
	PriceCents int64           `json:"price_cents"`
	Type       models.PlanType `json:"type"`
	Active     bool            `json:"active"`
}

type userPayload struct {
	ClerkUserID   string `json:"clerk_user_id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	CreditBalance int64  `json:"credit_balance"`
}

// SyncPlans delivers the current plan catalog.
func (s *Service) SyncPlans(ctx context.Context, plans []models.CreditPlan) error {
	payload := make([]planPayload, 0, len(plans))
	for _, p := range plans {
		payload = append(payload, planPayload{
			ID:         p.ID,
			Name:       p.Name,
			Credits:    p.Credits,
			PriceCents: p.PriceCents,
			Type:       p.Type,
			Active:     p.Active,
		})
	}
	return s.deliver(ctx, EndpointSyncPlans, map[string]any{"plans": payload})
}

// SyncUser delivers one user snapshot.
func (s *Service) SyncUser(ctx context.Context, profile *models.UserProfile) error {
	return s.deliver(ctx, EndpointSyncUnifiedData, map[string]any{
		"user": userPayload{
			ClerkUserID:   profile.ClerkUserID,
			Email:         profile.Email,
			Name:          profile.Name,
			CreditBalance: profile.CreditBalance,
		},
	})
}

func (s *Service) deliver(ctx context.Context, endpoint string, payload any) error {
	// The delivery id survives queueing so Server B can dedupe retries.
	deliveryID := uuid.NewString()

	if err := s.post(ctx, endpoint, deliveryID, payload); err != nil {
		fiberlog.Warnf("server b %s delivery failed, queueing for retry: %v", endpoint, err)
		s.enqueue(ctx, endpoint, deliveryID, payload)
		return err
	}
	return nil
}

func (s *Service) post(ctx context.Context, endpoint, deliveryID string, payload any) error {
	if !s.cb.CanExecute() {
		return ErrCircuitOpen
	}

	opts := &services.RequestOptions{
		Context: ctx,
		Headers: map[string]string{
			"X-API-Key":     s.cfg.APIKey,
			"X-Delivery-ID": deliveryID,
		},
		// The queue is the retry mechanism; one shot per delivery here.
		Retries: 1,
	}

	if err := s.client.Post(endpoint, payload, nil, opts); err != nil {
		s.cb.RecordFailure()
		return err
	}

	s.cb.RecordSuccess()
	return nil
}

func (s *Service) enqueue(ctx context.Context, endpoint, deliveryID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		fiberlog.Errorf("failed to marshal sync payload for %s: %v", endpoint, err)
		return
	}

	job := models.SyncJob{
		DeliveryID: deliveryID,
		Endpoint:   endpoint,
		Payload:    string(data),
		Attempts:   1,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		fiberlog.Errorf("failed to enqueue sync job for %s: %v", endpoint, err)
	}
}

// ProcessPending retries queued deliveries, oldest first. Jobs that exhaust
// their attempts stay in the table with the last error for inspection.
func (s *Service) ProcessPending(ctx context.Context) error {
	var jobs []models.SyncJob
	if err := s.db.WithContext(ctx).
		Where("completed_at IS NULL AND attempts < ?", s.maxAttempts).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return fmt.Errorf("failed to load pending sync jobs: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]

		var payload any
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			s.failJob(ctx, job, fmt.Errorf("corrupt payload: %w", err))
			continue
		}

		if err := s.post(ctx, job.Endpoint, job.DeliveryID, payload); err != nil {
			s.failJob(ctx, job, err)
			if errors.Is(err, ErrCircuitOpen) {
				// No point hammering the rest of the queue.
				break
			}
			continue
		}

		if err := s.db.WithContext(ctx).Model(job).
			Updates(map[string]any{"completed_at": gorm.Expr("CURRENT_TIMESTAMP")}).Error; err != nil {
			fiberlog.Errorf("failed to complete sync job %d: %v", job.ID, err)
		}
	}

	return nil
}

func (s *Service) failJob(ctx context.Context, job *models.SyncJob, cause error) {
	if err := s.db.WithContext(ctx).Model(job).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		}).Error; err != nil {
		fiberlog.Errorf("failed to update sync job %d: %v", job.ID, err)
	}
}
