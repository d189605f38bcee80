package rng

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDelay_Bounds(t *testing.T) {
	for i := 0; i < 500; i++ {
		v := Delay(2000, 5000)
		if v < 2000 || v > 5000 {
			t.Fatalf("delay %d out of [2000,5000]", v)
		}
	}
}

func TestDelay_Degenerate(t *testing.T) {
	if v := Delay(300, 300); v != 300 {
		t.Fatalf("Delay(300,300)=%d want 300", v)
	}
	if v := Delay(300, 100); v != 300 {
		t.Fatalf("Delay(300,100)=%d want 300", v)
	}
}

func TestLightSequence_Shape(t *testing.T) {
	for i := 0; i < 100; i++ {
		seq := LightSequence()
		if len(seq) != 5 {
			t.Fatalf("len=%d want 5", len(seq))
		}
		total := 0
		for _, iv := range seq {
			if iv < 400 || iv > 600 {
				t.Fatalf("interval %d out of [400,600]", iv)
			}
			total += iv
		}
		if total < 2000 || total > 3000 {
			t.Fatalf("total %dms out of [2000,3000]", total)
		}
	}
}

func TestPaymentReference_Deterministic(t *testing.T) {
	amt := decimal.RequireFromString("1000000000000000000")
	a := PaymentReference("m1", "u1", amt)
	b := PaymentReference("m1", "u1", amt)
	if a != b {
		t.Fatalf("same inputs gave %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("reference len=%d want 64", len(a))
	}
	if c := PaymentReference("m1", "u2", amt); c == a {
		t.Fatalf("different user gave identical reference")
	}
}

func TestMatchKey_OrderInsensitive(t *testing.T) {
	amt := decimal.NewFromInt(5)
	at := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	a := MatchKey("alice", "bob", amt, at)
	b := MatchKey("bob", "alice", amt, at)
	if a != b {
		t.Fatalf("player order changed key: %s vs %s", a, b)
	}
	later := MatchKey("alice", "bob", amt, at.Add(2*time.Minute))
	if later == a {
		t.Fatalf("rematch two minutes later reused key")
	}
}
