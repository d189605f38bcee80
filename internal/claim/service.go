// Package claim converts a decided match or an orphaned payment into an
// on-chain payout exactly once. Every transition runs under a row lock
// so concurrent claimers cannot both pass the "already claimed?" check,
// and a treasury failure lands back in a retryable state.
//
// A write failure after the treasury transfer leaves the row in
// processing with the transaction hash in the audit log. Those rows
// never auto-retry; an operator reconciles them from the log against
// the treasury's records.
package claim

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blinkbattle/internal/apperr"
	"blinkbattle/internal/client/treasury"
	"blinkbattle/internal/config"
	"blinkbattle/internal/models"
	"blinkbattle/internal/payment"
	"blinkbattle/internal/repository"
	"blinkbattle/internal/settlement"
)

// Treasury is the slice of the payout gateway the controller needs.
type Treasury interface {
	SendPayout(ctx context.Context, req treasury.PayoutRequest) (string, error)
}

type Service struct {
	Repo     repository.Repository
	Treasury Treasury
	Fees     config.FeesConfig
	Logger   *zap.Logger
}

// CanStartClaim validates a transition into processing. Only eligible
// (or none, for match claims) may start, plus the explicit
// retry-after-failure path when nothing was paid out.
func CanStartClaim(current string, claimed bool) error {
	switch current {
	case models.ClaimStatusNone, models.RefundStatusEligible:
		return nil
	case models.ClaimStatusProcessing:
		return apperr.New(apperr.KindConflictInProgress, "claim already in progress")
	case models.ClaimStatusCompleted:
		return apperr.New(apperr.KindConflictCompleted, "already claimed")
	case models.ClaimStatusFailed:
		if claimed {
			return apperr.New(apperr.KindConflictCompleted, "already claimed")
		}
		return nil
	default:
		return apperr.New(apperr.KindInternal, "unrecognized claim state "+current)
	}
}

// ClaimMatchPayout pays the winner's net pool share. The processing
// lock is taken in one transaction, the treasury call happens outside
// any lock, and the outcome is recorded in a second transaction, so no
// partial settlement is ever observable.
func (s *Service) ClaimMatchPayout(ctx context.Context, matchID, userID string) (string, error) {
	var (
		wallet string
		seat   int
		amount settlement.Payout
	)
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		m, err := s.Repo.LockMatchTx(tx, matchID)
		if err != nil {
			return err
		}
		seat = m.PlayerIndex(userID)
		if seat == 0 {
			return apperr.New(apperr.KindUnauthorized, "match does not belong to caller")
		}
		switch m.Status {
		case models.MatchStatusResolved, models.MatchStatusSettling, models.MatchStatusClosed:
		default:
			return apperr.New(apperr.KindValidation, "match is not resolved yet")
		}
		result := m.Player1Result
		wallet = m.Player1Wallet
		if seat == 2 {
			result = m.Player2Result
			wallet = m.Player2Wallet
		}
		if result == models.ResultDraw || result == models.ResultNoMatch {
			return apperr.New(apperr.KindValidation, "match has no winner payout, claim the stake refund instead")
		}
		if result != models.ResultWin {
			return apperr.New(apperr.KindUnauthorized, "only the winner may claim the payout")
		}

		paid := m.Player1PayoutState == models.PayoutPaid
		if seat == 2 {
			paid = m.Player2PayoutState == models.PayoutPaid
		}
		if err := CanStartClaim(m.ClaimStatus, paid); err != nil {
			return err
		}

		amount, err = settlement.ComputePayout(m.StakeWei, s.Fees.PlatformFeeBps)
		if err != nil {
			return err
		}
		return s.Repo.UpdateMatchFieldsTx(tx, matchID, map[string]any{
			"claim_status": models.ClaimStatusProcessing,
			"claimed_by":   userID,
			"status":       models.MatchStatusSettling,
		})
	})
	if err != nil {
		return "", err
	}

	hash, payErr := s.Treasury.SendPayout(ctx, treasury.PayoutRequest{
		To:        wallet,
		AmountWei: amount.NetPayoutWei,
		Reference: "match:" + matchID,
		Memo:      "blink battle winner payout",
	})
	if payErr != nil {
		if s.Logger != nil {
			s.Logger.Error("treasury payout failed", zap.String("match_id", matchID), zap.Error(payErr))
		}
		if uerr := s.Repo.UpdateMatchFields(ctx, matchID, map[string]any{
			"claim_status": models.ClaimStatusFailed,
		}); uerr != nil && s.Logger != nil {
			// Nothing was paid, but the row is stuck in processing until
			// an operator clears it; no retry can start from here.
			s.Logger.Error("claim failure write failed, match stuck in processing",
				zap.String("match_id", matchID),
				zap.Error(uerr),
			)
		}
		return "", apperr.Wrap(payErr, apperr.KindExternal, "treasury payout failed")
	}

	fields := map[string]any{
		"claim_status":  models.ClaimStatusCompleted,
		"claim_tx_hash": hash,
		"status":        models.MatchStatusClosed,
	}
	if seat == 1 {
		fields["player1_payout_state"] = models.PayoutPaid
	} else {
		fields["player2_payout_state"] = models.PayoutPaid
	}
	if err := s.Repo.UpdateMatchFields(ctx, matchID, fields); err != nil {
		// Funds already moved. The hash in this line is what an operator
		// needs to finish the bookkeeping by hand; the processing state
		// keeps every further claim attempt conflicting until then.
		if s.Logger != nil {
			s.Logger.Error("payout sent but outcome write failed",
				zap.String("match_id", matchID),
				zap.String("tx_hash", hash),
				zap.Error(err),
			)
		}
		return hash, apperr.Wrap(err, apperr.KindInternal, "payout sent, recording failed, quote tx "+hash+" to support")
	}
	if s.Logger != nil {
		s.Logger.Info("match payout completed",
			zap.String("match_id", matchID),
			zap.String("winner_id", userID),
			zap.String("tx_hash", hash),
		)
	}
	return hash, nil
}

// ClaimRefund returns a single confirmed stake, minus the gas fee, to
// its payer. It applies to draws, no-matches and cancelled matches.
func (s *Service) ClaimRefund(ctx context.Context, reference, userID string) (string, error) {
	return s.refund(ctx, reference, userID, false)
}

// ClaimDeposit is the orphaned-deposit path: a payment that confirmed
// but never got attached to a match. Identical discipline, keyed on the
// payment reference.
func (s *Service) ClaimDeposit(ctx context.Context, reference, userID string) (string, error) {
	return s.refund(ctx, reference, userID, true)
}

func (s *Service) refund(ctx context.Context, reference, userID string, requireOrphan bool) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", apperr.New(apperr.KindValidation, "reference is required")
	}

	var (
		wallet string
		amount settlement.Refund
	)
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		intent, err := s.Repo.LockPaymentIntentTx(tx, reference)
		if err != nil {
			return err
		}
		if userID != "" && intent.UserID != userID {
			return apperr.New(apperr.KindUnauthorized, "payment does not belong to caller")
		}
		if payment.Status(intent.NormalizedStatus) != payment.StatusConfirmed {
			return apperr.New(apperr.KindValidation, "payment never confirmed, nothing to refund")
		}
		if requireOrphan {
			if intent.MatchID != nil {
				return apperr.New(apperr.KindValidation, "payment is attached to a match, claim through the match")
			}
		} else if intent.MatchID != nil {
			m, err := s.Repo.LockMatchTx(tx, *intent.MatchID)
			if err != nil {
				return err
			}
			if !refundableMatch(m, intent.UserID) {
				return apperr.New(apperr.KindValidation, "match outcome does not permit a stake refund")
			}
		}
		if err := CanStartClaim(intent.RefundStatus, intent.Claimed); err != nil {
			return err
		}

		wallet = intent.Wallet
		amount, err = settlement.ComputeRefund(intent.AmountWei, s.Fees.GasFeeBps)
		if err != nil {
			return err
		}
		return s.Repo.UpdatePaymentIntentFieldsTx(tx, reference, map[string]any{
			"refund_status": models.RefundStatusProcessing,
		})
	})
	if err != nil {
		return "", err
	}

	hash, payErr := s.Treasury.SendPayout(ctx, treasury.PayoutRequest{
		To:        wallet,
		AmountWei: amount.RefundWei,
		Reference: "refund:" + reference,
		Memo:      "blink battle stake refund",
	})
	if payErr != nil {
		if s.Logger != nil {
			s.Logger.Error("treasury refund failed", zap.String("reference", reference), zap.Error(payErr))
		}
		// Failed with claimed=false is the one state a retry may start from.
		if uerr := s.Repo.UpdatePaymentIntentFields(ctx, reference, map[string]any{
			"refund_status": models.RefundStatusFailed,
		}); uerr != nil && s.Logger != nil {
			s.Logger.Error("refund failure write failed, intent stuck in processing",
				zap.String("reference", reference),
				zap.Error(uerr),
			)
		}
		return "", apperr.Wrap(payErr, apperr.KindExternal, "treasury refund failed")
	}

	if err := s.Repo.UpdatePaymentIntentFields(ctx, reference, map[string]any{
		"refund_status":  models.RefundStatusCompleted,
		"refund_tx_hash": hash,
		"claimed":        true,
	}); err != nil {
		// Funds already moved; the hash is the operator's handle for
		// completing the bookkeeping by hand.
		if s.Logger != nil {
			s.Logger.Error("refund sent but outcome write failed",
				zap.String("reference", reference),
				zap.String("tx_hash", hash),
				zap.Error(err),
			)
		}
		return hash, apperr.Wrap(err, apperr.KindInternal, "refund sent, recording failed, quote tx "+hash+" to support")
	}
	if s.Logger != nil {
		s.Logger.Info("stake refund completed",
			zap.String("reference", reference),
			zap.String("tx_hash", hash),
		)
	}
	return hash, nil
}

// refundableMatch reports whether the caller's stake on this match may
// be refunded: the match was cancelled, or it resolved without a winner
// payout for that player.
func refundableMatch(m *models.Match, userID string) bool {
	if m.Status == models.MatchStatusCancelled {
		return true
	}
	result := m.Player1Result
	if m.PlayerIndex(userID) == 2 {
		result = m.Player2Result
	}
	return result == models.ResultDraw || result == models.ResultNoMatch
}
