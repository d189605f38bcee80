// Package anticheat flags implausible client/server timing gaps. The
// check is advisory: it never rejects a tap, it only surfaces anomalies
// (clock skew, tampered clients) for downstream review.
package anticheat

import "go.uber.org/zap"

const (
	// DiscrepancyThresholdMs is the max tolerated gap between client
	// and server reaction measurements before a tap is flagged.
	DiscrepancyThresholdMs = 500

	// Reaction clamp bounds applied before any value reaches scoring.
	ReactionFloorMs = 0
	ReactionCeilMs  = 5000

	// Validity window for a humanly plausible reaction.
	MinValidReactionMs = 80
	MaxValidReactionMs = 3000
)

type Evaluator struct {
	Logger *zap.Logger
}

// CheckTimingDiscrepancy reports whether abs(client-server) exceeds the
// threshold. Suspicious taps are logged, never blocked.
func (e *Evaluator) CheckTimingDiscrepancy(clientReactionMs, serverReactionMs int64, userID string) bool {
	diff := clientReactionMs - serverReactionMs
	if diff < 0 {
		diff = -diff
	}
	if diff <= DiscrepancyThresholdMs {
		return false
	}
	if e != nil && e.Logger != nil {
		e.Logger.Warn("timing discrepancy flagged",
			zap.String("user_id", userID),
			zap.Int64("client_ms", clientReactionMs),
			zap.Int64("server_ms", serverReactionMs),
			zap.Int64("diff_ms", diff),
		)
	}
	return true
}

// ClampReaction bounds a reaction time so a negative or absurd client
// timestamp cannot corrupt settlement.
func ClampReaction(ms int64) int64 {
	if ms < ReactionFloorMs {
		return ReactionFloorMs
	}
	if ms > ReactionCeilMs {
		return ReactionCeilMs
	}
	return ms
}

// WithinValidWindow reports whether a reaction is humanly plausible.
func WithinValidWindow(ms int64) bool {
	return ms >= MinValidReactionMs && ms <= MaxValidReactionMs
}
