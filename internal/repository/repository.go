package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"blinkbattle/internal/models"
)

// Repository is the persistence boundary for matches, taps and payment
// intents. The *Tx variants operate inside a transaction opened by
// InTx, which is how claim/confirm transitions take their row locks.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Matches.
	CreateMatch(ctx context.Context, item *models.Match) error
	GetMatchByID(ctx context.Context, id string) (*models.Match, error)
	GetMatchByKey(ctx context.Context, key string) (*models.Match, error)
	UpdateMatchFields(ctx context.Context, id string, fields map[string]any) error
	LockMatchTx(tx *gorm.DB, id string) (*models.Match, error)
	UpdateMatchFieldsTx(tx *gorm.DB, id string, fields map[string]any) error
	ListStakePendingMatchesBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Match, error)

	// Tap ledger. InsertTapEventTx surfaces the composite unique index
	// violation as a conflict error; it is the only write path. All tap
	// access happens inside the match resolution transaction.
	InsertTapEventTx(tx *gorm.DB, item *models.TapEvent) error
	GetTapEventTx(tx *gorm.DB, matchID, userID string) (*models.TapEvent, error)
	ListTapEventsByMatchIDTx(tx *gorm.DB, matchID string) ([]models.TapEvent, error)

	// Payment intents.
	CreatePaymentIntentIfAbsent(ctx context.Context, item *models.PaymentIntent) (*models.PaymentIntent, error)
	GetPaymentIntentByReference(ctx context.Context, reference string) (*models.PaymentIntent, error)
	LockPaymentIntentTx(tx *gorm.DB, reference string) (*models.PaymentIntent, error)
	UpdatePaymentIntentFields(ctx context.Context, reference string, fields map[string]any) error
	UpdatePaymentIntentFieldsTx(tx *gorm.DB, reference string, fields map[string]any) error
	ListNonTerminalPaymentIntents(ctx context.Context, limit int) ([]models.PaymentIntent, error)
	ListOrphanedConfirmedIntents(ctx context.Context, userID string, limit int) ([]models.PaymentIntent, error)
}
