package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConditionType selects how an achievement measures progress.
type ConditionType string

const (
	ConditionCount      ConditionType = "count"
	ConditionStreak     ConditionType = "streak"
	ConditionPercentage ConditionType = "percentage"
	ConditionCombo      ConditionType = "combo"
)

// Aggregate names one statistic supplied by the stats provider.
type Aggregate string

const (
	AggregateExpenseCount       Aggregate = "expense_count"
	AggregateIncomeCount        Aggregate = "income_count"
	AggregateTransactionCount   Aggregate = "transaction_count"
	AggregateDescribedCount     Aggregate = "described_count"
	AggregateDistinctCurrencies Aggregate = "distinct_currencies"
)

// ComboPart is one requirement of a combo achievement.
type ComboPart struct {
	Aggregate Aggregate `json:"aggregate" yaml:"aggregate"`
	Min       int64     `json:"min" yaml:"min"`
}

// AchievementDefinition: static catalog entry (seeded at boot, read-only afterwards)
type AchievementDefinition struct {
	ID             string                         `gorm:"primaryKey;type:varchar(50)" json:"id" yaml:"id"`
	Name           string                         `gorm:"type:varchar(100);not null" json:"name" yaml:"name"`
	NameEN         string                         `gorm:"type:varchar(100)" json:"name_en,omitempty" yaml:"name_en"`
	NameKY         string                         `gorm:"type:varchar(100)" json:"name_ky,omitempty" yaml:"name_ky"`
	Description    string                         `gorm:"type:text" json:"description" yaml:"description"`
	DescriptionEN  string                         `gorm:"type:text" json:"description_en,omitempty" yaml:"description_en"`
	DescriptionKY  string                         `gorm:"type:text" json:"description_ky,omitempty" yaml:"description_ky"`
	Category       string                         `gorm:"type:varchar(50);not null" json:"category" yaml:"category"` // tracking, savings, streaks, special, rare
	Icon           string                         `gorm:"type:varchar(10);default:'🏆'" json:"icon" yaml:"icon"`
	XPReward       int64                          `gorm:"not null;default:0" json:"xp_reward" yaml:"xp_reward"`
	Rarity         string                         `gorm:"type:varchar(20);default:'common'" json:"rarity" yaml:"rarity"` // common, rare, epic, legendary
	ConditionType  ConditionType                  `gorm:"type:varchar(20);not null" json:"condition_type" yaml:"condition_type"`
	ConditionValue int64                          `gorm:"not null;default:1" json:"condition_value" yaml:"condition_value"`
	Aggregate      Aggregate                      `gorm:"type:varchar(50)" json:"aggregate,omitempty" yaml:"aggregate"`
	Parts          datatypes.JSONSlice[ComboPart] `json:"parts,omitempty" yaml:"parts"`
	SortOrder      int                            `gorm:"not null;default:0" json:"sort_order" yaml:"sort_order"`
	IsActive       bool                           `gorm:"not null;default:true" json:"is_active" yaml:"-"`
	CreatedAt      time.Time                      `gorm:"autoCreateTime" json:"-" yaml:"-"`
}

// AchievementProgress: per-user progress toward one catalog entry
type AchievementProgress struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string     `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	AchievementID string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_id"`
	Progress      int64      `gorm:"not null;default:0" json:"progress"`
	MaxProgress   int64      `gorm:"not null;default:1" json:"max_progress"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"` // terminal once set
	Notified      bool       `gorm:"not null;default:false" json:"notified"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Unlocked reports whether the achievement has been earned.
func (p *AchievementProgress) Unlocked() bool {
	return p.UnlockedAt != nil
}

func (AchievementProgress) TableName() string {
	return "achievement_progress"
}
