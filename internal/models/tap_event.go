package models

import "time"

// TapEvent records a player's tap for a match. The composite unique
// index is what makes tap recording first-write-wins: two concurrent
// submissions for the same (match, user) cannot both insert, so the
// ledger needs no check-then-insert logic. Rows are immutable.
type TapEvent struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	MatchID string `gorm:"type:uuid;not null;uniqueIndex:idx_tap_match_user,priority:1"`
	UserID  string `gorm:"type:varchar(100);not null;uniqueIndex:idx_tap_match_user,priority:2"`

	ClientTimestampMs int64     `gorm:"not null"`
	ServerTimestamp   time.Time `gorm:"type:timestamptz;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TapEvent) TableName() string {
	return "tap_events"
}
