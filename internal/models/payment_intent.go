package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Refund claim states for a payment intent. Processing is a provisional
// lock held by exactly one claimer; failed with claimed=false is the
// only state a retry may start from.
const (
	RefundStatusEligible   = "eligible"
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusFailed     = "failed"
)

// PaymentIntent tracks one player's stake from initiation to a terminal
// normalized status. Reference is the deterministic idempotency key
// (hash of matchID|userID|amount), so repeated initiations converge on
// the same row. Rows are retained indefinitely for audit.
type PaymentIntent struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	Reference string `gorm:"type:varchar(64);not null;uniqueIndex"`

	UserID    string          `gorm:"type:varchar(100);not null;index"`
	MatchID   *string         `gorm:"type:uuid;index"`
	Wallet    string          `gorm:"type:varchar(128)"`
	AmountWei decimal.Decimal `gorm:"type:numeric(38,0);not null"`

	// NormalizedStatus only moves forward through the terminal lattice
	// (pending -> confirmed|failed|cancelled). RawStatus echoes whatever
	// the verifier last reported, for diagnostics only.
	NormalizedStatus string         `gorm:"type:varchar(12);not null;default:'pending';index"`
	RawStatus        string         `gorm:"type:varchar(40)"`
	RawPayload       datatypes.JSON `gorm:"type:jsonb"`

	TransactionHash      string `gorm:"type:varchar(100)"`
	MinikitTransactionID string `gorm:"type:varchar(100);index"`

	RetryCount int    `gorm:"not null;default:0"`
	LastError  string `gorm:"type:text"`

	RefundStatus   string     `gorm:"type:varchar(12);not null;default:'eligible'"`
	RefundDeadline *time.Time `gorm:"type:timestamptz"`
	RefundTxHash   string     `gorm:"type:varchar(100)"`
	Claimed        bool       `gorm:"not null;default:false"`

	ConfirmedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}
