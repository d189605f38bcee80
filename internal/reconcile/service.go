// Package reconcile sweeps state the request path could not finish:
// payments stuck in pending after the client went away, and matches
// that never collected both stakes. Sweeps are best effort and
// idempotent, so a crash mid-batch loses nothing.
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"blinkbattle/internal/apperr"
	"blinkbattle/internal/models"
	"blinkbattle/internal/payment"
	"blinkbattle/internal/repository"
)

// Confirmer re-verifies one payment against the on-chain verifier.
type Confirmer interface {
	Confirm(ctx context.Context, reference, userID, minikitTxID string) (*models.PaymentIntent, error)
}

// Canceller abandons a match that never started.
type Canceller interface {
	Cancel(ctx context.Context, matchID string) error
}

type Service struct {
	Repo      repository.Repository
	Payments  Confirmer
	Matches   Canceller
	Logger    *zap.Logger
	BatchSize int

	// StakeDeadline is how long a match may sit without both stakes
	// before the sweep cancels it.
	StakeDeadline time.Duration

	// Now is swappable for tests. Nil means time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) batch() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return 100
}

// SweepPendingPayments re-polls the verifier for every pending intent
// that has a transaction id on record. A verifier outage skips the
// intent; the next sweep picks it up again.
func (s *Service) SweepPendingPayments(ctx context.Context) error {
	intents, err := s.Repo.ListNonTerminalPaymentIntents(ctx, s.batch())
	if err != nil {
		return err
	}
	var advanced, skipped int
	for _, intent := range intents {
		updated, err := s.Payments.Confirm(ctx, intent.Reference, "", intent.MinikitTransactionID)
		if err != nil {
			skipped++
			if apperr.KindOf(err) != apperr.KindExternal && s.Logger != nil {
				s.Logger.Warn("payment sweep confirm failed",
					zap.String("reference", intent.Reference),
					zap.Error(err),
				)
			}
			continue
		}
		if payment.IsTerminal(payment.Status(updated.NormalizedStatus)) {
			advanced++
		}
	}
	if s.Logger != nil && len(intents) > 0 {
		s.Logger.Info("payment sweep complete",
			zap.Int("scanned", len(intents)),
			zap.Int("advanced", advanced),
			zap.Int("skipped", skipped),
		)
	}
	return nil
}

// ExpireStaleMatches cancels matches still waiting on stakes past the
// deadline. Confirmed stakes on a cancelled match stay refund eligible,
// so nobody's escrow is stranded.
func (s *Service) ExpireStaleMatches(ctx context.Context) error {
	deadline := s.StakeDeadline
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}
	cutoff := s.now().Add(-deadline)
	matches, err := s.Repo.ListStakePendingMatchesBefore(ctx, cutoff, s.batch())
	if err != nil {
		return err
	}
	var cancelled int
	for _, m := range matches {
		if err := s.Matches.Cancel(ctx, m.ID); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("stale match cancel failed",
					zap.String("match_id", m.ID),
					zap.Error(err),
				)
			}
			continue
		}
		cancelled++
	}
	if s.Logger != nil && cancelled > 0 {
		s.Logger.Info("stale matches expired", zap.Int("cancelled", cancelled))
	}
	return nil
}
