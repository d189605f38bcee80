package claim_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"blinkbattle/internal/apperr"
	"blinkbattle/internal/claim"
	"blinkbattle/internal/client/treasury"
	"blinkbattle/internal/config"
	"blinkbattle/internal/models"
	"blinkbattle/internal/repository"
	memrepository "blinkbattle/internal/repository/memory"
)

type fakeTreasury struct {
	calls []treasury.PayoutRequest
	hash  string
	err   error
}

func (f *fakeTreasury) SendPayout(_ context.Context, req treasury.PayoutRequest) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.hash, nil
}

func oneToken() decimal.Decimal {
	return decimal.New(1, 18)
}

func newService(t *fakeTreasury) (*claim.Service, *memrepository.Store) {
	repo := memrepository.New()
	svc := &claim.Service{
		Repo:     repo,
		Treasury: t,
		Fees:     config.FeesConfig{PlatformFeeBps: 300, GasFeeBps: 300},
	}
	return svc, repo
}

func seedResolvedMatch(t *testing.T, repo *memrepository.Store, winnerSeat int) *models.Match {
	t.Helper()
	winner := "u1"
	m := &models.Match{
		ID:            "m1",
		MatchKey:      "k1",
		Player1ID:     "u1",
		Player2ID:     "u2",
		Player1Wallet: "0xaaa",
		Player2Wallet: "0xbbb",
		StakeWei:      oneToken(),
		Status:        models.MatchStatusResolved,
		Player1Result: models.ResultWin,
		Player2Result: models.ResultLoss,
		ClaimStatus:   models.ClaimStatusNone,
	}
	if winnerSeat == 2 {
		winner = "u2"
		m.Player1Result = models.ResultLoss
		m.Player2Result = models.ResultWin
	}
	m.WinnerID = &winner
	if err := repo.CreateMatch(context.Background(), m); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return m
}

func TestClaimMatchPayout(t *testing.T) {
	gw := &fakeTreasury{hash: "0xdead"}
	svc, repo := newService(gw)
	seedResolvedMatch(t, repo, 1)

	hash, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if hash != "0xdead" {
		t.Fatalf("hash = %q, want 0xdead", hash)
	}
	if len(gw.calls) != 1 {
		t.Fatalf("treasury called %d times, want 1", len(gw.calls))
	}
	// Net payout for a 1.0 stake pool at 300 bps is 1.94 tokens.
	want := decimal.New(194, 16)
	if !gw.calls[0].AmountWei.Equal(want) {
		t.Fatalf("payout = %s, want %s", gw.calls[0].AmountWei, want)
	}
	if gw.calls[0].To != "0xaaa" {
		t.Fatalf("payout went to %s, want winner wallet", gw.calls[0].To)
	}

	m, err := repo.GetMatchByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.ClaimStatus != models.ClaimStatusCompleted {
		t.Fatalf("claim_status = %s, want completed", m.ClaimStatus)
	}
	if m.ClaimTxHash != "0xdead" {
		t.Fatalf("claim_tx_hash = %q, want 0xdead", m.ClaimTxHash)
	}
	if m.Player1PayoutState != models.PayoutPaid {
		t.Fatalf("winner payout state = %s, want PAID", m.Player1PayoutState)
	}
	if m.Player2PayoutState != models.PayoutNotPaid {
		t.Fatalf("loser payout state = %s, want NOT_PAID", m.Player2PayoutState)
	}
	if m.Status != models.MatchStatusClosed {
		t.Fatalf("status = %s, want closed", m.Status)
	}
}

func TestClaimMatchPayoutSecondClaimConflicts(t *testing.T) {
	gw := &fakeTreasury{hash: "0xdead"}
	svc, repo := newService(gw)
	seedResolvedMatch(t, repo, 1)

	if _, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1")
	if apperr.KindOf(err) != apperr.KindConflictCompleted {
		t.Fatalf("second claim kind = %v, want CONFLICT_COMPLETED", apperr.KindOf(err))
	}
	if len(gw.calls) != 1 {
		t.Fatalf("treasury called %d times, want 1", len(gw.calls))
	}
}

func TestClaimMatchPayoutLoserRejected(t *testing.T) {
	gw := &fakeTreasury{hash: "0xdead"}
	svc, repo := newService(gw)
	seedResolvedMatch(t, repo, 1)

	_, err := svc.ClaimMatchPayout(context.Background(), "m1", "u2")
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("kind = %v, want UNAUTHORIZED", apperr.KindOf(err))
	}
	_, err = svc.ClaimMatchPayout(context.Background(), "m1", "stranger")
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("stranger kind = %v, want UNAUTHORIZED", apperr.KindOf(err))
	}
	if len(gw.calls) != 0 {
		t.Fatalf("treasury called for a non-winner")
	}
}

func TestClaimMatchPayoutDrawDirectsToRefund(t *testing.T) {
	gw := &fakeTreasury{hash: "0xdead"}
	svc, repo := newService(gw)
	m := seedResolvedMatch(t, repo, 1)
	_ = repo.UpdateMatchFields(context.Background(), m.ID, map[string]any{
		"winner_id":      nil,
		"player1_result": models.ResultDraw,
		"player2_result": models.ResultDraw,
	})

	_, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want VALIDATION", apperr.KindOf(err))
	}
}

func TestClaimMatchPayoutTreasuryFailureIsRetryable(t *testing.T) {
	gw := &fakeTreasury{err: errors.New("gateway down")}
	svc, repo := newService(gw)
	seedResolvedMatch(t, repo, 1)

	_, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1")
	if apperr.KindOf(err) != apperr.KindExternal {
		t.Fatalf("kind = %v, want EXTERNAL_SERVICE", apperr.KindOf(err))
	}
	m, _ := repo.GetMatchByID(context.Background(), "m1")
	if m.ClaimStatus != models.ClaimStatusFailed {
		t.Fatalf("claim_status = %s, want failed", m.ClaimStatus)
	}
	if m.Player1PayoutState != models.PayoutNotPaid {
		t.Fatalf("payout marked PAID after a failed transfer")
	}

	gw.err = nil
	gw.hash = "0xretry"
	hash, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if hash != "0xretry" {
		t.Fatalf("retry hash = %q", hash)
	}
	m, _ = repo.GetMatchByID(context.Background(), "m1")
	if m.ClaimStatus != models.ClaimStatusCompleted {
		t.Fatalf("claim_status after retry = %s", m.ClaimStatus)
	}
}

// outcomeWriteFailRepo fails the next non-transactional match update,
// simulating a database drop between the transfer and its bookkeeping.
type outcomeWriteFailRepo struct {
	repository.Repository
	failures int
}

func (r *outcomeWriteFailRepo) UpdateMatchFields(ctx context.Context, id string, fields map[string]any) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset")
	}
	return r.Repository.UpdateMatchFields(ctx, id, fields)
}

func TestClaimMatchPayoutOutcomeWriteFailureSurfacesHash(t *testing.T) {
	gw := &fakeTreasury{hash: "0xdead"}
	mem := memrepository.New()
	svc := &claim.Service{
		Repo:     &outcomeWriteFailRepo{Repository: mem, failures: 1},
		Treasury: gw,
		Fees:     config.FeesConfig{PlatformFeeBps: 300, GasFeeBps: 300},
	}
	seedResolvedMatch(t, mem, 1)

	hash, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1")
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("kind = %v, want INTERNAL", apperr.KindOf(err))
	}
	if hash != "0xdead" {
		t.Fatalf("hash = %q, want the treasury hash surfaced alongside the error", hash)
	}
	if len(gw.calls) != 1 {
		t.Fatalf("treasury called %d times, want 1", len(gw.calls))
	}
	// The row holds processing so no second payout can start; an
	// operator resolves it from the logged hash.
	m, _ := mem.GetMatchByID(context.Background(), "m1")
	if m.ClaimStatus != models.ClaimStatusProcessing {
		t.Fatalf("claim_status = %s, want processing", m.ClaimStatus)
	}
	if _, err := svc.ClaimMatchPayout(context.Background(), "m1", "u1"); apperr.KindOf(err) != apperr.KindConflictInProgress {
		t.Fatalf("second claim kind = %v, want CONFLICT_IN_PROGRESS", apperr.KindOf(err))
	}
}

func seedConfirmedIntent(t *testing.T, repo *memrepository.Store, matchID *string) {
	t.Helper()
	_, err := repo.CreatePaymentIntentIfAbsent(context.Background(), &models.PaymentIntent{
		ID:               "p1",
		Reference:        "ref1",
		UserID:           "u1",
		MatchID:          matchID,
		Wallet:           "0xaaa",
		AmountWei:        oneToken(),
		NormalizedStatus: "confirmed",
		RefundStatus:     models.RefundStatusEligible,
	})
	if err != nil {
		t.Fatalf("seed intent: %v", err)
	}
}

func TestClaimRefundForDraw(t *testing.T) {
	gw := &fakeTreasury{hash: "0xref"}
	svc, repo := newService(gw)
	m := seedResolvedMatch(t, repo, 1)
	_ = repo.UpdateMatchFields(context.Background(), m.ID, map[string]any{
		"winner_id":      nil,
		"player1_result": models.ResultDraw,
		"player2_result": models.ResultDraw,
	})
	matchID := m.ID
	seedConfirmedIntent(t, repo, &matchID)

	hash, err := svc.ClaimRefund(context.Background(), "ref1", "u1")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if hash != "0xref" {
		t.Fatalf("hash = %q", hash)
	}
	// Refund for a 1.0 stake at 300 bps gas fee is 0.97 tokens.
	want := decimal.New(97, 16)
	if !gw.calls[0].AmountWei.Equal(want) {
		t.Fatalf("refund = %s, want %s", gw.calls[0].AmountWei, want)
	}

	intent, _ := repo.GetPaymentIntentByReference(context.Background(), "ref1")
	if intent.RefundStatus != models.RefundStatusCompleted {
		t.Fatalf("refund_status = %s, want completed", intent.RefundStatus)
	}
	if !intent.Claimed {
		t.Fatalf("claimed flag not set")
	}
	if intent.RefundTxHash != "0xref" {
		t.Fatalf("refund_tx_hash = %q, want 0xref", intent.RefundTxHash)
	}
}

func TestClaimRefundRejectedWhenMatchHasWinner(t *testing.T) {
	gw := &fakeTreasury{hash: "0xref"}
	svc, repo := newService(gw)
	m := seedResolvedMatch(t, repo, 1)
	matchID := m.ID
	seedConfirmedIntent(t, repo, &matchID)

	_, err := svc.ClaimRefund(context.Background(), "ref1", "u1")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want VALIDATION", apperr.KindOf(err))
	}
	if len(gw.calls) != 0 {
		t.Fatalf("treasury called for a decided match")
	}
}

func TestClaimRefundDoubleClaimConflicts(t *testing.T) {
	gw := &fakeTreasury{hash: "0xref"}
	svc, repo := newService(gw)
	m := seedResolvedMatch(t, repo, 1)
	_ = repo.UpdateMatchFields(context.Background(), m.ID, map[string]any{
		"status": models.MatchStatusCancelled,
	})
	matchID := m.ID
	seedConfirmedIntent(t, repo, &matchID)

	if _, err := svc.ClaimRefund(context.Background(), "ref1", "u1"); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	_, err := svc.ClaimRefund(context.Background(), "ref1", "u1")
	if apperr.KindOf(err) != apperr.KindConflictCompleted {
		t.Fatalf("second refund kind = %v, want CONFLICT_COMPLETED", apperr.KindOf(err))
	}
}

func TestClaimDepositRequiresOrphan(t *testing.T) {
	gw := &fakeTreasury{hash: "0xorph"}
	svc, repo := newService(gw)
	seedConfirmedIntent(t, repo, nil)

	hash, err := svc.ClaimDeposit(context.Background(), "ref1", "u1")
	if err != nil {
		t.Fatalf("deposit claim: %v", err)
	}
	if hash != "0xorph" {
		t.Fatalf("hash = %q", hash)
	}

	svc2, repo2 := newService(&fakeTreasury{hash: "0x"})
	m := seedResolvedMatch(t, repo2, 1)
	matchID := m.ID
	seedConfirmedIntent(t, repo2, &matchID)
	_, err = svc2.ClaimDeposit(context.Background(), "ref1", "u1")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("attached intent kind = %v, want VALIDATION", apperr.KindOf(err))
	}
}

func TestClaimDepositOwnership(t *testing.T) {
	gw := &fakeTreasury{hash: "0x"}
	svc, repo := newService(gw)
	seedConfirmedIntent(t, repo, nil)

	_, err := svc.ClaimDeposit(context.Background(), "ref1", "someone-else")
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("kind = %v, want UNAUTHORIZED", apperr.KindOf(err))
	}
}

func TestCanStartClaimTable(t *testing.T) {
	cases := []struct {
		current string
		claimed bool
		want    apperr.Kind
	}{
		{models.ClaimStatusNone, false, ""},
		{models.RefundStatusEligible, false, ""},
		{models.ClaimStatusProcessing, false, apperr.KindConflictInProgress},
		{models.ClaimStatusCompleted, true, apperr.KindConflictCompleted},
		{models.ClaimStatusFailed, false, ""},
		{models.ClaimStatusFailed, true, apperr.KindConflictCompleted},
	}
	for _, tc := range cases {
		err := claim.CanStartClaim(tc.current, tc.claimed)
		if tc.want == "" {
			if err != nil {
				t.Fatalf("CanStartClaim(%s, %v) = %v, want nil", tc.current, tc.claimed, err)
			}
			continue
		}
		if apperr.KindOf(err) != tc.want {
			t.Fatalf("CanStartClaim(%s, %v) kind = %v, want %v", tc.current, tc.claimed, apperr.KindOf(err), tc.want)
		}
	}
}
