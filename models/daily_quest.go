package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestType is the activity kind a quest listens for.
type QuestType string

const (
	QuestTypeExpense     QuestType = "expense"
	QuestTypeIncome      QuestType = "income"
	QuestTypeTransaction QuestType = "transaction"
	QuestTypeDescription QuestType = "description"
)

// QuestDateLayout is the storage format of DailyQuestSet.QuestDate.
const QuestDateLayout = "2006-01-02"

// QuestInstance is one drawn quest with its progress for the day.
type QuestInstance struct {
	ID        string    `json:"id"`
	Type      QuestType `json:"type"`
	Target    int       `json:"target"`
	XP        int64     `json:"xp"`
	Progress  int       `json:"progress"`
	Completed bool      `json:"completed"`
}

// DailyQuestSet holds the quests drawn for one user on one calendar date.
// The drawn subset never changes for that date.
type DailyQuestSet struct {
	ID           string                             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string                             `gorm:"not null;uniqueIndex:idx_user_quest_date,priority:1" json:"user_id"`
	QuestDate    string                             `gorm:"type:varchar(10);not null;uniqueIndex:idx_user_quest_date,priority:2;index" json:"quest_date"`
	Quests       datatypes.JSONSlice[QuestInstance] `gorm:"not null" json:"quests"`
	AllCompleted bool                               `gorm:"not null;default:false" json:"all_completed"`
	BonusClaimed bool                               `gorm:"not null;default:false" json:"bonus_claimed"`
	CreatedAt    time.Time                          `gorm:"autoCreateTime" json:"created_at"`
}
