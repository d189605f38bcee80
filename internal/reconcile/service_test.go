package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"blinkbattle/internal/client/minikit"
	"blinkbattle/internal/config"
	"blinkbattle/internal/models"
	"blinkbattle/internal/payment"
	"blinkbattle/internal/reconcile"
	memrepository "blinkbattle/internal/repository/memory"
)

type scriptedVerifier struct {
	status string
	hash   string
	err    error
	calls  int
}

func (v *scriptedVerifier) GetTransaction(_ context.Context, transactionID string) (*minikit.Transaction, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return &minikit.Transaction{
		ID:        transactionID,
		RawStatus: v.status,
		Hash:      v.hash,
	}, nil
}

type countingCanceller struct {
	cancelled []string
}

func (c *countingCanceller) Cancel(_ context.Context, matchID string) error {
	c.cancelled = append(c.cancelled, matchID)
	return nil
}

func seedPendingIntent(t *testing.T, repo *memrepository.Store, reference, txID string) {
	t.Helper()
	_, err := repo.CreatePaymentIntentIfAbsent(context.Background(), &models.PaymentIntent{
		ID:                   "id-" + reference,
		Reference:            reference,
		UserID:               "u1",
		AmountWei:            decimal.New(1, 18),
		NormalizedStatus:     string(payment.StatusPending),
		MinikitTransactionID: txID,
	})
	if err != nil {
		t.Fatalf("seed intent: %v", err)
	}
}

func TestSweepPendingPaymentsAdvancesConfirmed(t *testing.T) {
	repo := memrepository.New()
	verifier := &scriptedVerifier{status: "mined", hash: "0xabc"}
	payments := &payment.Service{
		Repo:     repo,
		Verifier: verifier,
		Config:   config.VerifierConfig{},
	}
	svc := &reconcile.Service{Repo: repo, Payments: payments}

	seedPendingIntent(t, repo, "ref1", "tx1")
	seedPendingIntent(t, repo, "ref2", "tx2")

	if err := svc.SweepPendingPayments(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if verifier.calls != 2 {
		t.Fatalf("verifier called %d times, want 2", verifier.calls)
	}
	for _, ref := range []string{"ref1", "ref2"} {
		intent, err := repo.GetPaymentIntentByReference(context.Background(), ref)
		if err != nil {
			t.Fatalf("reload %s: %v", ref, err)
		}
		if intent.NormalizedStatus != string(payment.StatusConfirmed) {
			t.Fatalf("%s status = %s, want confirmed", ref, intent.NormalizedStatus)
		}
		if intent.TransactionHash != "0xabc" {
			t.Fatalf("%s hash = %q", ref, intent.TransactionHash)
		}
	}
}

func TestSweepPendingPaymentsToleratesVerifierOutage(t *testing.T) {
	repo := memrepository.New()
	verifier := &scriptedVerifier{err: errors.New("verifier down")}
	payments := &payment.Service{Repo: repo, Verifier: verifier}
	svc := &reconcile.Service{Repo: repo, Payments: payments}

	seedPendingIntent(t, repo, "ref1", "tx1")

	if err := svc.SweepPendingPayments(context.Background()); err != nil {
		t.Fatalf("sweep should not fail on a verifier outage: %v", err)
	}
	intent, _ := repo.GetPaymentIntentByReference(context.Background(), "ref1")
	if intent.NormalizedStatus != string(payment.StatusPending) {
		t.Fatalf("status = %s, want pending", intent.NormalizedStatus)
	}
	if intent.RetryCount != 1 {
		t.Fatalf("retry_count = %d, want 1", intent.RetryCount)
	}
}

func TestExpireStaleMatches(t *testing.T) {
	repo := memrepository.New()
	canceller := &countingCanceller{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &reconcile.Service{
		Repo:          repo,
		Matches:       canceller,
		StakeDeadline: 10 * time.Minute,
		Now:           func() time.Time { return now },
	}

	stale := &models.Match{
		ID:        "m-stale",
		MatchKey:  "k-stale",
		Player1ID: "u1",
		Player2ID: "u2",
		StakeWei:  decimal.New(1, 18),
		Status:    models.MatchStatusReadyWait,
		CreatedAt: now.Add(-time.Hour),
	}
	fresh := &models.Match{
		ID:        "m-fresh",
		MatchKey:  "k-fresh",
		Player1ID: "u3",
		Player2ID: "u4",
		StakeWei:  decimal.New(1, 18),
		Status:    models.MatchStatusCreated,
		CreatedAt: now.Add(-time.Minute),
	}
	for _, m := range []*models.Match{stale, fresh} {
		if err := repo.CreateMatch(context.Background(), m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := svc.ExpireStaleMatches(context.Background()); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != "m-stale" {
		t.Fatalf("cancelled = %v, want [m-stale]", canceller.cancelled)
	}
}
