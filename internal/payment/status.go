package payment

import "strings"

// Status is the internal four-state vocabulary all settlement logic is
// written against. Raw verifier statuses are mapped here and nowhere
// else; settlement code never branches on raw external shapes.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var rawStatusMap = map[string]Status{
	"initiated":            StatusPending,
	"authorized":           StatusPending,
	"submitted":            StatusPending,
	"broadcast":            StatusPending,
	"pending":              StatusPending,
	"pending_confirmation": StatusPending,

	"confirmed": StatusConfirmed,
	"success":   StatusConfirmed,
	"succeeded": StatusConfirmed,
	"mined":     StatusConfirmed,

	"failed":   StatusFailed,
	"error":    StatusFailed,
	"reverted": StatusFailed,

	"expired":   StatusCancelled,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
}

// NormalizeStrict maps a raw verifier status onto the internal
// vocabulary. The second return is false when the raw value is unknown
// (or empty); unknown values normalize to pending so they are never
// optimistically confirmed nor silently dropped.
func NormalizeStrict(raw string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return StatusPending, false
	}
	if st, ok := rawStatusMap[key]; ok {
		return st, true
	}
	return StatusPending, false
}

// Normalize is the total mapping: every input lands on exactly one of
// the four internal states.
func Normalize(raw string) Status {
	st, _ := NormalizeStrict(raw)
	return st
}

// IsTerminal is true only for confirmed/failed/cancelled. No path
// returns from a terminal state to pending.
func IsTerminal(st Status) bool {
	switch st {
	case StatusConfirmed, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
