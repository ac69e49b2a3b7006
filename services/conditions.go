package services

import (
	"fmt"

	"finance-gamification/models"
)

// EvalContext is what a condition can look at.
type EvalContext struct {
	Profile *models.UserProgressionProfile
	Stats   UserStats
}

// Condition measures raw progress toward an achievement. The engine clamps the value.
type Condition interface {
	Measure(ec EvalContext) int64
	// NeedsStats is false when the profile alone is enough.
	NeedsStats() bool
}

// CountCondition reads one named aggregate.
type CountCondition struct {
	Aggregate models.Aggregate
}

func (c CountCondition) Measure(ec EvalContext) int64 { return ec.Stats.Aggregate(c.Aggregate) }
func (CountCondition) NeedsStats() bool               { return true }

// StreakCondition reads the current day streak.
type StreakCondition struct{}

func (StreakCondition) Measure(ec EvalContext) int64 { return int64(ec.Profile.CurrentStreak) }
func (StreakCondition) NeedsStats() bool             { return false }

// SavingsRateCondition reads this month's savings rate in percent.
type SavingsRateCondition struct{}

func (SavingsRateCondition) Measure(ec EvalContext) int64 { return ec.Stats.SavingsRate() }
func (SavingsRateCondition) NeedsStats() bool             { return true }

// ComboCondition counts how many of its parts are satisfied.
type ComboCondition struct {
	Parts []models.ComboPart
}

func (c ComboCondition) Measure(ec EvalContext) int64 {
	var met int64
	for _, part := range c.Parts {
		if ec.Stats.Aggregate(part.Aggregate) >= part.Min {
			met++
		}
	}
	return met
}

func (ComboCondition) NeedsStats() bool { return true }

// ConditionFor builds the strategy for a catalog entry.
func ConditionFor(def models.AchievementDefinition) (Condition, error) {
	switch def.ConditionType {
	case models.ConditionCount:
		if !knownAggregate(def.Aggregate) {
			return nil, fmt.Errorf("achievement %s: unknown aggregate %q", def.ID, def.Aggregate)
		}
		return CountCondition{Aggregate: def.Aggregate}, nil
	case models.ConditionStreak:
		return StreakCondition{}, nil
	case models.ConditionPercentage:
		return SavingsRateCondition{}, nil
	case models.ConditionCombo:
		if len(def.Parts) == 0 {
			return nil, fmt.Errorf("achievement %s: combo without parts", def.ID)
		}
		for _, part := range def.Parts {
			if !knownAggregate(part.Aggregate) {
				return nil, fmt.Errorf("achievement %s: unknown combo aggregate %q", def.ID, part.Aggregate)
			}
		}
		return ComboCondition{Parts: append([]models.ComboPart(nil), def.Parts...)}, nil
	}
	return nil, fmt.Errorf("achievement %s: unknown condition type %q", def.ID, def.ConditionType)
}

func knownAggregate(a models.Aggregate) bool {
	switch a {
	case models.AggregateExpenseCount,
		models.AggregateIncomeCount,
		models.AggregateTransactionCount,
		models.AggregateDescribedCount,
		models.AggregateDistinctCurrencies:
		return true
	}
	return false
}
