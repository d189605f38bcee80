package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blinkbattle/internal/apperr"
	"blinkbattle/internal/models"
	"blinkbattle/internal/payment"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Matches ----------------------------------------------------------------

func (s *Store) CreateMatch(ctx context.Context, item *models.Match) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	err := s.db.WithContext(ctx).Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(err, apperr.KindConflictCompleted, "match already formed")
	}
	return err
}

func (s *Store) GetMatchByID(ctx context.Context, id string) (*models.Match, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Match
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "match not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetMatchByKey(ctx context.Context, key string) (*models.Match, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Match
	err := s.db.WithContext(ctx).Where("match_key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateMatchFields(ctx context.Context, id string, fields map[string]any) error {
	if s == nil || s.db == nil || len(fields) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *Store) LockMatchTx(tx *gorm.DB, id string) (*models.Match, error) {
	if tx == nil {
		return nil, errors.New("nil tx")
	}
	var item models.Match
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "match not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateMatchFieldsTx(tx *gorm.DB, id string, fields map[string]any) error {
	if tx == nil {
		return errors.New("nil tx")
	}
	if len(fields) == 0 {
		return nil
	}
	return tx.Model(&models.Match{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) ListStakePendingMatchesBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Match, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var items []models.Match
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{
			models.MatchStatusCreated,
			models.MatchStatusReadyWait,
		}).
		Where("created_at < ?", cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Tap ledger -------------------------------------------------------------

func (s *Store) InsertTapEventTx(tx *gorm.DB, item *models.TapEvent) error {
	if tx == nil {
		return errors.New("nil tx")
	}
	if item == nil {
		return nil
	}
	err := tx.Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(err, apperr.KindConflictCompleted, "already tapped")
	}
	return err
}

func (s *Store) GetTapEventTx(tx *gorm.DB, matchID, userID string) (*models.TapEvent, error) {
	if tx == nil {
		return nil, errors.New("nil tx")
	}
	var item models.TapEvent
	err := tx.Where("match_id = ? AND user_id = ?", matchID, userID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTapEventsByMatchIDTx(tx *gorm.DB, matchID string) ([]models.TapEvent, error) {
	if tx == nil {
		return nil, errors.New("nil tx")
	}
	var items []models.TapEvent
	err := tx.Where("match_id = ?", matchID).
		Order("server_timestamp asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Payment intents --------------------------------------------------------

// CreatePaymentIntentIfAbsent is an atomic insert-or-return-existing on
// the reference, so concurrent first-initiations converge on one row
// without a check-then-insert race.
func (s *Store) CreatePaymentIntentIfAbsent(ctx context.Context, item *models.PaymentIntent) (*models.PaymentIntent, error) {
	if s == nil || s.db == nil || item == nil {
		return nil, nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoNothing: true,
	}).Create(item).Error
	if err != nil {
		return nil, err
	}
	return s.GetPaymentIntentByReference(ctx, item.Reference)
}

func (s *Store) GetPaymentIntentByReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PaymentIntent
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) LockPaymentIntentTx(tx *gorm.DB, reference string) (*models.PaymentIntent, error) {
	if tx == nil {
		return nil, errors.New("nil tx")
	}
	var item models.PaymentIntent
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdatePaymentIntentFields(ctx context.Context, reference string, fields map[string]any) error {
	if s == nil || s.db == nil || len(fields) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("reference = ?", reference).
		Updates(fields).Error
}

func (s *Store) UpdatePaymentIntentFieldsTx(tx *gorm.DB, reference string, fields map[string]any) error {
	if tx == nil {
		return errors.New("nil tx")
	}
	if len(fields) == 0 {
		return nil
	}
	return tx.Model(&models.PaymentIntent{}).
		Where("reference = ?", reference).
		Updates(fields).Error
}

func (s *Store) ListNonTerminalPaymentIntents(ctx context.Context, limit int) ([]models.PaymentIntent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var items []models.PaymentIntent
	err := s.db.WithContext(ctx).
		Where("normalized_status = ?", string(payment.StatusPending)).
		Where("minikit_transaction_id <> ''").
		Order("updated_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListOrphanedConfirmedIntents returns confirmed stakes that never got
// attached to a match, the claim-deposit population.
func (s *Store) ListOrphanedConfirmedIntents(ctx context.Context, userID string, limit int) ([]models.PaymentIntent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := s.db.WithContext(ctx).
		Where("normalized_status = ?", string(payment.StatusConfirmed)).
		Where("match_id IS NULL").
		Where("claimed = ?", false)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	var items []models.PaymentIntent
	if err := query.Order("created_at asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
