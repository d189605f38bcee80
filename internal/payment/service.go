package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blinkbattle/internal/apperr"
	"blinkbattle/internal/client/minikit"
	"blinkbattle/internal/config"
	"blinkbattle/internal/models"
	"blinkbattle/internal/repository"
	"blinkbattle/internal/rng"
)

// Verifier is the slice of the MiniKit client the ledger needs.
type Verifier interface {
	GetTransaction(ctx context.Context, transactionID string) (*minikit.Transaction, error)
}

// Service is the payment/stake ledger: it records payment intents,
// normalizes external transaction status and enforces idempotent
// confirmation. It never moves funds itself.
type Service struct {
	Repo     repository.Repository
	Verifier Verifier
	Config   config.VerifierConfig
	Logger   *zap.Logger
}

// Initiate records a payment intent for a stake. The reference is a
// deterministic hash of matchID|userID|amount, and insertion is an
// atomic insert-or-return-existing, so repeated or concurrent calls
// converge on the same row.
func (s *Service) Initiate(ctx context.Context, userID, wallet string, matchID *string, amountWei decimal.Decimal) (*models.PaymentIntent, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(apperr.KindValidation, "user id is required")
	}
	if !amountWei.IsPositive() || !amountWei.Equal(amountWei.Truncate(0)) {
		return nil, apperr.New(apperr.KindValidation, "amount must be a positive integral wei value")
	}

	var reference string
	if matchID != nil && *matchID != "" {
		reference = rng.PaymentReference(*matchID, userID, amountWei)
	} else {
		reference = rng.DepositReference(userID, amountWei)
	}

	item := &models.PaymentIntent{
		ID:               uuid.NewString(),
		Reference:        reference,
		UserID:           userID,
		MatchID:          matchID,
		Wallet:           wallet,
		AmountWei:        amountWei,
		NormalizedStatus: string(StatusPending),
		RefundStatus:     models.RefundStatusEligible,
	}
	return s.Repo.CreatePaymentIntentIfAbsent(ctx, item)
}

// Confirm reconciles an intent against the verifier. Re-confirming an
// already-confirmed intent with the same transaction id short-circuits
// on the cached state without a verifier round-trip. A verifier
// "pending" updates diagnostics only; only an explicit mined/success
// signal advances the normalized status.
func (s *Service) Confirm(ctx context.Context, reference, userID, minikitTxID string) (*models.PaymentIntent, error) {
	reference = strings.TrimSpace(reference)
	minikitTxID = strings.TrimSpace(minikitTxID)
	if reference == "" {
		return nil, apperr.New(apperr.KindValidation, "reference is required")
	}
	if minikitTxID == "" {
		return nil, apperr.New(apperr.KindValidation, "transaction id is required")
	}

	var (
		out         *models.PaymentIntent
		verifierErr error
		retryCount  int
	)
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		intent, err := s.Repo.LockPaymentIntentTx(tx, reference)
		if err != nil {
			return err
		}
		if userID != "" && intent.UserID != userID {
			return apperr.New(apperr.KindUnauthorized, "payment does not belong to caller")
		}

		current := Status(intent.NormalizedStatus)
		if IsTerminal(current) {
			if intent.MinikitTransactionID == minikitTxID {
				out = intent
				return nil
			}
			return apperr.New(apperr.KindConflictCompleted, "payment already settled with a different transaction")
		}

		vt, err := s.Verifier.GetTransaction(ctx, minikitTxID)
		if err != nil {
			// Returning the error rolls the transaction back, so the
			// diagnostic write happens after InTx, outside it.
			verifierErr = err
			retryCount = intent.RetryCount + 1
			return apperr.Wrap(err, apperr.KindExternal, "verifier lookup failed")
		}

		normalized, known := NormalizeStrict(vt.RawStatus)
		if !known && s.Logger != nil {
			s.Logger.Warn("unknown verifier status, treating as pending",
				zap.String("reference", reference),
				zap.String("raw_status", vt.RawStatus),
			)
		}

		fields := map[string]any{
			"raw_status":             vt.RawStatus,
			"minikit_transaction_id": minikitTxID,
			"last_error":             "",
		}
		if len(vt.Raw) > 0 {
			fields["raw_payload"] = datatypes.JSON(vt.Raw)
		}
		if vt.Hash != "" {
			fields["transaction_hash"] = vt.Hash
		}
		if IsTerminal(normalized) {
			fields["normalized_status"] = string(normalized)
			if normalized == StatusConfirmed {
				fields["confirmed_at"] = time.Now().UTC()
			}
		}
		if err := s.Repo.UpdatePaymentIntentFieldsTx(tx, reference, fields); err != nil {
			return err
		}

		updated := *intent
		updated.RawStatus = vt.RawStatus
		updated.MinikitTransactionID = minikitTxID
		if vt.Hash != "" {
			updated.TransactionHash = vt.Hash
		}
		if IsTerminal(normalized) {
			updated.NormalizedStatus = string(normalized)
		}
		out = &updated
		return nil
	})
	if err != nil {
		if verifierErr != nil {
			if uerr := s.Repo.UpdatePaymentIntentFields(ctx, reference, map[string]any{
				"retry_count": retryCount,
				"last_error":  verifierErr.Error(),
			}); uerr != nil && s.Logger != nil {
				s.Logger.Warn("failed to record verifier error",
					zap.String("reference", reference),
					zap.Error(uerr),
				)
			}
		}
		return nil, err
	}
	return out, nil
}

// ConfirmWithPolling re-confirms with exponential backoff until the
// intent reaches a terminal status or the attempt budget runs out.
// Exhaustion is a distinct timeout outcome: the money state is still
// pending, not failed.
func (s *Service) ConfirmWithPolling(ctx context.Context, reference, userID, minikitTxID string) (*models.PaymentIntent, error) {
	attempts := s.Config.PollAttempts
	if attempts <= 0 {
		attempts = 10
	}
	backoff := s.Config.PollInitial
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := s.Config.PollMax
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	var last *models.PaymentIntent
	for i := 0; i < attempts; i++ {
		intent, err := s.Confirm(ctx, reference, userID, minikitTxID)
		if err != nil {
			if apperr.Is(err, apperr.KindExternal) {
				// Verifier hiccups are retryable within the budget.
				if s.Logger != nil {
					s.Logger.Warn("verifier poll attempt failed",
						zap.String("reference", reference),
						zap.Int("attempt", i+1),
						zap.Error(err),
					)
				}
			} else {
				return nil, err
			}
		} else {
			last = intent
			if IsTerminal(Status(intent.NormalizedStatus)) {
				return intent, nil
			}
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = NextBackoff(backoff, maxBackoff)
	}
	_ = last
	return nil, apperr.New(apperr.KindTimeout, "confirmation polling exhausted, re-initiate confirmation")
}

// NextBackoff doubles the interval up to the cap.
func NextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// GetByReference returns the intent after an ownership check.
func (s *Service) GetByReference(ctx context.Context, reference, userID string) (*models.PaymentIntent, error) {
	intent, err := s.Repo.GetPaymentIntentByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	if userID != "" && intent.UserID != userID {
		return nil, apperr.New(apperr.KindUnauthorized, "payment does not belong to caller")
	}
	return intent, nil
}
