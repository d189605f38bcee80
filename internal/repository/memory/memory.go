// Package memrepository is an in-memory Repository used by service
// tests and local development. Transactions are serialized on a single
// mutex, which coarsely models the row locks the Postgres store takes.
package memrepository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blinkbattle/internal/apperr"
	"blinkbattle/internal/models"
	"blinkbattle/internal/payment"
)

type Store struct {
	mu      sync.Mutex
	matches map[string]*models.Match
	keys    map[string]string // match key -> match id
	taps    map[string]*models.TapEvent
	intents map[string]*models.PaymentIntent
}

func New() *Store {
	return &Store{
		matches: map[string]*models.Match{},
		keys:    map[string]string{},
		taps:    map[string]*models.TapEvent{},
		intents: map[string]*models.PaymentIntent{},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(nil)
}

// --- Matches ----------------------------------------------------------------

func (s *Store) CreateMatch(ctx context.Context, item *models.Match) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[item.MatchKey]; ok {
		return apperr.New(apperr.KindConflictCompleted, "match already formed")
	}
	cp := *item
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	// Column defaults the database would fill in.
	if cp.Status == "" {
		cp.Status = models.MatchStatusCreated
	}
	if cp.Player1PayoutState == "" {
		cp.Player1PayoutState = models.PayoutNotPaid
	}
	if cp.Player2PayoutState == "" {
		cp.Player2PayoutState = models.PayoutNotPaid
	}
	if cp.ClaimStatus == "" {
		cp.ClaimStatus = models.ClaimStatusNone
	}
	s.matches[cp.ID] = &cp
	s.keys[cp.MatchKey] = cp.ID
	return nil
}

func (s *Store) GetMatchByID(ctx context.Context, id string) (*models.Match, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMatch(id)
}

func (s *Store) getMatch(id string) (*models.Match, error) {
	m, ok := s.matches[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "match not found")
	}
	cp := *m
	return &cp, nil
}

func (s *Store) GetMatchByKey(ctx context.Context, key string) (*models.Match, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	if !ok {
		return nil, nil
	}
	return s.getMatch(id)
}

func (s *Store) UpdateMatchFields(ctx context.Context, id string, fields map[string]any) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateMatch(id, fields)
}

func (s *Store) LockMatchTx(tx *gorm.DB, id string) (*models.Match, error) {
	_ = tx
	return s.getMatch(id)
}

func (s *Store) UpdateMatchFieldsTx(tx *gorm.DB, id string, fields map[string]any) error {
	_ = tx
	return s.updateMatch(id, fields)
}

func (s *Store) updateMatch(id string, fields map[string]any) error {
	m, ok := s.matches[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "match not found")
	}
	for k, v := range fields {
		switch k {
		case "status":
			m.Status = v.(string)
		case "player1_ready":
			m.Player1Ready = v.(bool)
		case "player2_ready":
			m.Player2Ready = v.(bool)
		case "player1_ready_at":
			m.Player1ReadyAt = toTimePtr(v)
		case "player2_ready_at":
			m.Player2ReadyAt = toTimePtr(v)
		case "player1_staked":
			m.Player1Staked = v.(bool)
		case "player2_staked":
			m.Player2Staked = v.(bool)
		case "player1_stake_tx_ref":
			m.Player1StakeTxRef = v.(string)
		case "player2_stake_tx_ref":
			m.Player2StakeTxRef = v.(string)
		case "red_sequence_end_at":
			m.RedSequenceEndAt = toTimePtr(v)
		case "signal_at":
			m.SignalAt = toTimePtr(v)
		case "winner_id":
			m.WinnerID = toStringPtr(v)
		case "player1_result":
			m.Player1Result = v.(string)
		case "player2_result":
			m.Player2Result = v.(string)
		case "player1_payout_state":
			m.Player1PayoutState = v.(string)
		case "player2_payout_state":
			m.Player2PayoutState = v.(string)
		case "claim_status":
			m.ClaimStatus = v.(string)
		case "claim_tx_hash":
			m.ClaimTxHash = v.(string)
		case "claimed_by":
			m.ClaimedBy = toStringPtr(v)
		}
	}
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListStakePendingMatchesBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Match, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if (m.Status == models.MatchStatusCreated || m.Status == models.MatchStatusReadyWait) && m.CreatedAt.Before(cutoff) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Tap ledger -------------------------------------------------------------

func tapKey(matchID, userID string) string {
	return matchID + "|" + userID
}

func (s *Store) InsertTapEventTx(tx *gorm.DB, item *models.TapEvent) error {
	_ = tx
	key := tapKey(item.MatchID, item.UserID)
	if _, ok := s.taps[key]; ok {
		return apperr.New(apperr.KindConflictCompleted, "already tapped")
	}
	cp := *item
	s.taps[key] = &cp
	return nil
}

func (s *Store) GetTapEventTx(tx *gorm.DB, matchID, userID string) (*models.TapEvent, error) {
	_ = tx
	t, ok := s.taps[tapKey(matchID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTapEventsByMatchIDTx(tx *gorm.DB, matchID string) ([]models.TapEvent, error) {
	_ = tx
	var out []models.TapEvent
	for _, t := range s.taps {
		if t.MatchID == matchID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerTimestamp.Before(out[j].ServerTimestamp) })
	return out, nil
}

// --- Payment intents --------------------------------------------------------

func (s *Store) CreatePaymentIntentIfAbsent(ctx context.Context, item *models.PaymentIntent) (*models.PaymentIntent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.intents[item.Reference]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *item
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	// Column defaults the database would fill in.
	if cp.NormalizedStatus == "" {
		cp.NormalizedStatus = string(payment.StatusPending)
	}
	if cp.RefundStatus == "" {
		cp.RefundStatus = models.RefundStatusEligible
	}
	s.intents[cp.Reference] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetPaymentIntentByReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getIntent(reference)
}

func (s *Store) getIntent(reference string) (*models.PaymentIntent, error) {
	it, ok := s.intents[reference]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "payment not found")
	}
	cp := *it
	return &cp, nil
}

func (s *Store) LockPaymentIntentTx(tx *gorm.DB, reference string) (*models.PaymentIntent, error) {
	_ = tx
	return s.getIntent(reference)
}

func (s *Store) UpdatePaymentIntentFields(ctx context.Context, reference string, fields map[string]any) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateIntent(reference, fields)
}

func (s *Store) UpdatePaymentIntentFieldsTx(tx *gorm.DB, reference string, fields map[string]any) error {
	_ = tx
	return s.updateIntent(reference, fields)
}

func (s *Store) updateIntent(reference string, fields map[string]any) error {
	it, ok := s.intents[reference]
	if !ok {
		return apperr.New(apperr.KindNotFound, "payment not found")
	}
	for k, v := range fields {
		switch k {
		case "normalized_status":
			it.NormalizedStatus = v.(string)
		case "raw_status":
			it.RawStatus = v.(string)
		case "raw_payload":
			it.RawPayload = v.(datatypes.JSON)
		case "transaction_hash":
			it.TransactionHash = v.(string)
		case "minikit_transaction_id":
			it.MinikitTransactionID = v.(string)
		case "retry_count":
			it.RetryCount = v.(int)
		case "last_error":
			it.LastError = v.(string)
		case "refund_status":
			it.RefundStatus = v.(string)
		case "refund_deadline":
			it.RefundDeadline = toTimePtr(v)
		case "refund_tx_hash":
			it.RefundTxHash = v.(string)
		case "claimed":
			it.Claimed = v.(bool)
		case "match_id":
			it.MatchID = toStringPtr(v)
		case "confirmed_at":
			it.ConfirmedAt = toTimePtr(v)
		}
	}
	it.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListNonTerminalPaymentIntents(ctx context.Context, limit int) ([]models.PaymentIntent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentIntent
	for _, it := range s.intents {
		if it.NormalizedStatus == string(payment.StatusPending) && strings.TrimSpace(it.MinikitTransactionID) != "" {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListOrphanedConfirmedIntents(ctx context.Context, userID string, limit int) ([]models.PaymentIntent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentIntent
	for _, it := range s.intents {
		if it.NormalizedStatus != string(payment.StatusConfirmed) || it.MatchID != nil || it.Claimed {
			continue
		}
		if userID != "" && it.UserID != userID {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func toTimePtr(v any) *time.Time {
	switch x := v.(type) {
	case *time.Time:
		return x
	case time.Time:
		return &x
	case nil:
		return nil
	}
	return nil
}

func toStringPtr(v any) *string {
	switch x := v.(type) {
	case *string:
		return x
	case string:
		return &x
	case nil:
		return nil
	}
	return nil
}
