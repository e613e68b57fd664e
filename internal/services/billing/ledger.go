package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maiscreditos/creditshub/internal/models"

	"gorm.io/gorm"
)

var (
	ErrDuplicateSession = errors.New("checkout session already credited")
	ErrUserNotFound     = errors.New("user profile not found")
)

// Ledger is the single crediting path. The balance column is moved with an
// atomic SQL increment and the transaction row's unique session id makes a
// replayed event fail the insert instead of crediting twice.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// AddCredits credits a user for one completed checkout session.
// Returns ErrDuplicateSession when the session was already processed.
func (l *Ledger) AddCredits(ctx context.Context, params models.AddCreditsParams) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.PaymentTransaction{}).
			Where("stripe_session_id = ?", params.StripeSessionID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateSession
		}

		result := tx.Model(&models.UserProfile{}).
			Where("clerk_user_id = ?", params.ClerkUserID).
			UpdateColumn("credit_balance", gorm.Expr("credit_balance + ?", params.Credits))
		if result.Error != nil {
			return fmt.Errorf("failed to increment balance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var profile models.UserProfile
		if err := tx.Where("clerk_user_id = ?", params.ClerkUserID).
			First(&profile).Error; err != nil {
			return fmt.Errorf("failed to reload profile: %w", err)
		}

		txn = models.PaymentTransaction{
			ClerkUserID:     params.ClerkUserID,
			PlanID:          params.PlanID,
			PlanType:        params.PlanType,
			CreditsAdded:    params.Credits,
			AmountCents:     params.AmountCents,
			Status:          models.TransactionCompleted,
			CouponCode:      params.CouponCode,
			StripeSessionID: params.StripeSessionID,
			BalanceAfter:    profile.CreditBalance,
		}

		if err := tx.Create(&txn).Error; err != nil {
			// Concurrent delivery of the same event can slip past the
			// pre-check; the unique index is the backstop.
			if isDuplicateError(err) {
				return ErrDuplicateSession
			}
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

// GetBalance returns the current credit balance for a user.
func (l *Ledger) GetBalance(ctx context.Context, clerkUserID string) (int64, error) {
	var profile models.UserProfile
	err := l.db.WithContext(ctx).
		Where("clerk_user_id = ?", clerkUserID).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return profile.CreditBalance, nil
}

// GetTransactionHistory retrieves a user's completed purchases, newest first.
func (l *Ledger) GetTransactionHistory(ctx context.Context, clerkUserID string, limit, offset int) ([]models.PaymentTransaction, error) {
	query := l.db.WithContext(ctx).
		Where("clerk_user_id = ?", clerkUserID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var transactions []models.PaymentTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}

	return transactions, nil
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
