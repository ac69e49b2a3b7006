package services

import (
	"fmt"

	"finance-gamification/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// streakTier: minimum streak for a multiplier, checked from the top.
type streakTier struct {
	MinStreak  int
	Multiplier decimal.Decimal
}

var streakTiers = []streakTier{
	{MinStreak: 90, Multiplier: decimal.RequireFromString("1.5")},
	{MinStreak: 30, Multiplier: decimal.RequireFromString("1.3")},
	{MinStreak: 14, Multiplier: decimal.RequireFromString("1.2")},
	{MinStreak: 7, Multiplier: decimal.RequireFromString("1.1")},
}

// StreakMultiplier returns the XP multiplier earned by a streak.
func StreakMultiplier(streak int) decimal.Decimal {
	for _, tier := range streakTiers {
		if streak >= tier.MinStreak {
			return tier.Multiplier
		}
	}
	return decimal.NewFromInt(1)
}

// GrantResult describes a single XP grant.
type GrantResult struct {
	Granted    int64   `json:"xp_earned"`
	Multiplier float64 `json:"multiplier"`
	LevelUp    bool    `json:"level_up"`
	NewLevel   int     `json:"new_level,omitempty"`
	TotalXP    int64   `json:"total_xp"`
}

// XPLedger grants XP and appends the history trail.
type XPLedger struct {
	levels *LevelTable
	clock  clockwork.Clock
}

func NewXPLedger(levels *LevelTable, clock clockwork.Clock) *XPLedger {
	return &XPLedger{levels: levels, clock: clock}
}

// Grant applies the streak multiplier to base, adds the result to the profile and
// appends an XPHistoryEntry through tx. The profile row itself is saved by the caller
// once per unit of work. Streak milestone bonuses are fixed amounts and are not multiplied.
func (l *XPLedger) Grant(tx *gorm.DB, prog *models.UserProgressionProfile, base int64, reason models.XPReason, details map[string]any) (GrantResult, error) {
	multiplier := decimal.NewFromInt(1)
	if reason != models.XPReasonStreakBonus {
		multiplier = StreakMultiplier(prog.CurrentStreak)
	}
	granted := decimal.NewFromInt(base).Mul(multiplier).Floor().IntPart()
	if granted < 0 {
		granted = 0
	}

	// v7 ids sort by creation, which orders entries sharing a timestamp
	id, err := uuid.NewV7()
	if err != nil {
		return GrantResult{}, fmt.Errorf("xp history id: %w", err)
	}

	oldLevel := prog.Level
	prog.XP += granted
	prog.TotalXP += granted
	newLevel := l.levels.LevelFor(prog.TotalXP)
	prog.Level = newLevel

	if details == nil {
		details = map[string]any{}
	}
	entry := models.XPHistoryEntry{
		ID:         id.String(),
		UserID:     prog.UserID,
		Amount:     granted,
		Multiplier: multiplier.InexactFloat64(),
		Reason:     reason,
		Details:    datatypes.JSONMap(details),
		CreatedAt:  l.clock.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return GrantResult{}, fmt.Errorf("append xp history: %w", err)
	}

	res := GrantResult{
		Granted:    granted,
		Multiplier: multiplier.InexactFloat64(),
		LevelUp:    newLevel > oldLevel,
		TotalXP:    prog.TotalXP,
	}
	if res.LevelUp {
		res.NewLevel = newLevel
	}
	return res, nil
}
