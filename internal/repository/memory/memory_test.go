package memrepository_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"blinkbattle/internal/models"
	memrepository "blinkbattle/internal/repository/memory"
)

func TestCreateMatchAppliesColumnDefaults(t *testing.T) {
	s := memrepository.New()
	err := s.CreateMatch(context.Background(), &models.Match{
		ID:        "m1",
		MatchKey:  "k1",
		Player1ID: "u1",
		Player2ID: "u2",
		StakeWei:  decimal.New(1, 18),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m, err := s.GetMatchByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Status != models.MatchStatusCreated {
		t.Fatalf("status = %q, want created", m.Status)
	}
	if m.Player1PayoutState != models.PayoutNotPaid || m.Player2PayoutState != models.PayoutNotPaid {
		t.Fatalf("payout states = %q/%q, want NOT_PAID", m.Player1PayoutState, m.Player2PayoutState)
	}
	if m.ClaimStatus != models.ClaimStatusNone {
		t.Fatalf("claim_status = %q, want none", m.ClaimStatus)
	}
}

func TestCreatePaymentIntentAppliesColumnDefaults(t *testing.T) {
	s := memrepository.New()
	_, err := s.CreatePaymentIntentIfAbsent(context.Background(), &models.PaymentIntent{
		ID:        "p1",
		Reference: "ref1",
		UserID:    "u1",
		AmountWei: decimal.New(1, 18),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	it, err := s.GetPaymentIntentByReference(context.Background(), "ref1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if it.NormalizedStatus != "pending" {
		t.Fatalf("normalized_status = %q, want pending", it.NormalizedStatus)
	}
	if it.RefundStatus != models.RefundStatusEligible {
		t.Fatalf("refund_status = %q, want eligible", it.RefundStatus)
	}
}
