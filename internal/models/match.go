package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Match status lattice. Exceptional outcomes (false start, timeout,
// cancelled) fold back into resolved/closed through the same fields.
const (
	MatchStatusCreated   = "created"
	MatchStatusReadyWait = "ready_wait"
	MatchStatusStaked    = "staked"
	MatchStatusCountdown = "countdown"
	MatchStatusArmed     = "armed"
	MatchStatusSignaled  = "signaled"
	MatchStatusResolved  = "resolved"
	MatchStatusSettling  = "settling"
	MatchStatusClosed    = "closed"
	MatchStatusCancelled = "cancelled"
)

// Per-player match results.
const (
	ResultWin     = "WIN"
	ResultLoss    = "LOSS"
	ResultDraw    = "DRAW"
	ResultNoMatch = "NO_MATCH"
)

// Payout states. PayoutPaid is reachable only for a WIN with a
// completed claim.
const (
	PayoutNotPaid = "NOT_PAID"
	PayoutPaid    = "PAID"
)

// Claim states shared by match payout claims and payment refund claims.
const (
	ClaimStatusNone       = "none"
	ClaimStatusProcessing = "processing"
	ClaimStatusCompleted  = "completed"
	ClaimStatusFailed     = "failed"
)

// Match is the authoritative record of one two-player staked round.
// Rows are never deleted, only transitioned; closed is terminal.
type Match struct {
	ID string `gorm:"primaryKey;type:uuid"`

	// MatchKey is the formation idempotency key: a deterministic hash of
	// the sorted player pair, the stake and the formation timestamp.
	MatchKey string `gorm:"type:varchar(64);not null;uniqueIndex"`

	Player1ID     string `gorm:"type:varchar(100);not null;index"`
	Player2ID     string `gorm:"type:varchar(100);not null;index"`
	Player1Wallet string `gorm:"type:varchar(128);not null"`
	Player2Wallet string `gorm:"type:varchar(128);not null"`

	StakeWei decimal.Decimal `gorm:"type:numeric(38,0);not null"`

	Status string `gorm:"type:varchar(20);not null;default:'created';index"`

	Player1Ready   bool       `gorm:"not null;default:false"`
	Player2Ready   bool       `gorm:"not null;default:false"`
	Player1ReadyAt *time.Time `gorm:"type:timestamptz"`
	Player2ReadyAt *time.Time `gorm:"type:timestamptz"`

	Player1Staked     bool   `gorm:"not null;default:false"`
	Player2Staked     bool   `gorm:"not null;default:false"`
	Player1StakeTxRef string `gorm:"type:varchar(100)"`
	Player2StakeTxRef string `gorm:"type:varchar(100)"`

	RedSequenceEndAt *time.Time `gorm:"type:timestamptz"`
	SignalAt         *time.Time `gorm:"type:timestamptz"`

	WinnerID      *string `gorm:"type:varchar(100);index"`
	Player1Result string  `gorm:"type:varchar(10)"`
	Player2Result string  `gorm:"type:varchar(10)"`

	Player1PayoutState string `gorm:"type:varchar(10);not null;default:'NOT_PAID'"`
	Player2PayoutState string `gorm:"type:varchar(10);not null;default:'NOT_PAID'"`

	ClaimStatus string  `gorm:"type:varchar(12);not null;default:'none'"`
	ClaimTxHash string  `gorm:"type:varchar(100)"`
	ClaimedBy   *string `gorm:"type:varchar(100)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Match) TableName() string {
	return "matches"
}

// PlayerIndex reports which seat the user occupies (1 or 2), 0 if the
// user is not part of the match.
func (m *Match) PlayerIndex(userID string) int {
	switch userID {
	case m.Player1ID:
		return 1
	case m.Player2ID:
		return 2
	default:
		return 0
	}
}

// BothReady reports whether both players have flagged ready.
func (m *Match) BothReady() bool {
	return m.Player1Ready && m.Player2Ready
}

// BothStaked reports whether both stakes have confirmed.
func (m *Match) BothStaked() bool {
	return m.Player1Staked && m.Player2Staked
}
