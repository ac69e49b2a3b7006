package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserProgressionProfile tracks gamified progression for each user (denormalized for performance)
type UserProgressionProfile struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // owner in the tracker's users table

	// Core progression. XP and TotalXP both accumulate every grant.
	Level   int   `json:"level" gorm:"not null;default:1"`
	XP      int64 `json:"xp" gorm:"not null;default:0"`
	TotalXP int64 `json:"total_xp" gorm:"not null;default:0"`

	// Streak
	CurrentStreak      int             `json:"current_streak" gorm:"not null;default:0"`
	MaxStreak          int             `json:"max_streak" gorm:"not null;default:0"`
	LastActivityDate   *datatypes.Date `json:"last_activity_date,omitempty"`
	GraceUsedThisMonth bool            `json:"grace_used_this_month" gorm:"not null;default:false"`

	// Activity counters
	TotalTransactions int64 `json:"total_transactions" gorm:"not null;default:0"`
	TotalAchievements int64 `json:"total_achievements" gorm:"not null;default:0"`

	// Display preferences
	NotificationsEnabled bool `json:"notifications_enabled" gorm:"not null;default:true"`
	ShowOnHome           bool `json:"show_on_home" gorm:"not null;default:true"`

	// Version guards concurrent writers: every save bumps it and requires the old value.
	Version int64 `json:"-" gorm:"not null;default:0"`

	Timestamps
}

// LastActivity returns the last activity date, ok=false when the user never had one.
func (p *UserProgressionProfile) LastActivity() (time.Time, bool) {
	if p.LastActivityDate == nil {
		return time.Time{}, false
	}
	return time.Time(*p.LastActivityDate), true
}

// SetLastActivity stores day as the last activity date.
func (p *UserProgressionProfile) SetLastActivity(day time.Time) {
	d := datatypes.Date(day)
	p.LastActivityDate = &d
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
