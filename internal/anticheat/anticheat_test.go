package anticheat

import "testing"

func TestCheckTimingDiscrepancy(t *testing.T) {
	e := &Evaluator{}
	if e.CheckTimingDiscrepancy(200, 400, "u1") {
		t.Fatalf("200ms gap flagged")
	}
	if e.CheckTimingDiscrepancy(200, 700, "u1") {
		t.Fatalf("exactly 500ms gap flagged")
	}
	if !e.CheckTimingDiscrepancy(200, 701, "u1") {
		t.Fatalf("501ms gap not flagged")
	}
	if !e.CheckTimingDiscrepancy(900, 150, "u1") {
		t.Fatalf("negative-direction gap not flagged")
	}
}

func TestClampReaction(t *testing.T) {
	if v := ClampReaction(-50); v != 0 {
		t.Fatalf("clamp(-50)=%d want 0", v)
	}
	if v := ClampReaction(250); v != 250 {
		t.Fatalf("clamp(250)=%d want 250", v)
	}
	if v := ClampReaction(99999); v != 5000 {
		t.Fatalf("clamp(99999)=%d want 5000", v)
	}
}

func TestWithinValidWindow(t *testing.T) {
	cases := []struct {
		ms   int64
		want bool
	}{
		{79, false},
		{80, true},
		{3000, true},
		{3001, false},
	}
	for _, c := range cases {
		if got := WithinValidWindow(c.ms); got != c.want {
			t.Fatalf("WithinValidWindow(%d)=%v want %v", c.ms, got, c.want)
		}
	}
}
