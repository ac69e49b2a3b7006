package models

import (
	"time"

	"gorm.io/datatypes"
)

// XPReason records why XP was granted.
type XPReason string

const (
	XPReasonTransaction       XPReason = "transaction"
	XPReasonAchievement       XPReason = "achievement"
	XPReasonDailyQuest        XPReason = "daily_quest"
	XPReasonDailyAllCompleted XPReason = "daily_all_completed"
	XPReasonStreakBonus       XPReason = "streak_bonus"
)

// XPHistoryEntry is an append-only ledger record; rows are never updated or deleted.
type XPHistoryEntry struct {
	ID         string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string            `gorm:"index:idx_xp_history_user_created,priority:1;not null" json:"user_id"`
	Amount     int64             `gorm:"not null" json:"amount"` // post-multiplier
	Multiplier float64           `gorm:"not null;default:1" json:"multiplier"`
	Reason     XPReason          `gorm:"type:varchar(32);not null" json:"reason"`
	Details    datatypes.JSONMap `json:"details"`
	CreatedAt  time.Time         `gorm:"index:idx_xp_history_user_created,priority:2" json:"created_at"`
}

func (XPHistoryEntry) TableName() string {
	return "xp_history"
}
