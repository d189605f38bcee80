package payment

import "testing"

func TestNormalize_KnownVocabulary(t *testing.T) {
	cases := map[string]Status{
		"initiated":            StatusPending,
		"Authorized":           StatusPending,
		"BROADCAST":            StatusPending,
		"pending_confirmation": StatusPending,
		"confirmed":            StatusConfirmed,
		"Success":              StatusConfirmed,
		"mined":                StatusConfirmed,
		"failed":               StatusFailed,
		"error":                StatusFailed,
		"expired":              StatusCancelled,
		"cancelled":            StatusCancelled,
		"canceled":             StatusCancelled,
		" confirmed ":          StatusConfirmed,
	}
	for raw, want := range cases {
		if got := Normalize(raw); got != want {
			t.Fatalf("Normalize(%q)=%s want %s", raw, got, want)
		}
	}
}

func TestNormalize_UnknownIsPending(t *testing.T) {
	for _, raw := range []string{"", "wat", "CONFIRMEDD", "0x1"} {
		st, known := NormalizeStrict(raw)
		if st != StatusPending {
			t.Fatalf("NormalizeStrict(%q)=%s want pending", raw, st)
		}
		if known {
			t.Fatalf("NormalizeStrict(%q) reported known", raw)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(StatusPending) {
		t.Fatalf("pending reported terminal")
	}
	for _, st := range []Status{StatusConfirmed, StatusFailed, StatusCancelled} {
		if !IsTerminal(st) {
			t.Fatalf("%s not reported terminal", st)
		}
	}
}
