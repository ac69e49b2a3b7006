package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finance-gamification/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnlockedAchievement is reported once, in the call that unlocked it.
type UnlockedAchievement struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Rarity    string `json:"rarity"`
	XPReward  int64  `json:"xp_reward"`
	XPGranted int64  `json:"xp_granted"`
	LevelUp   bool   `json:"level_up"`
}

// AchievementEngine recomputes progress of locked achievements and unlocks them exactly once.
type AchievementEngine struct {
	catalog *Catalog
	ledger  *XPLedger
	clock   clockwork.Clock
}

func NewAchievementEngine(catalog *Catalog, ledger *XPLedger, clock clockwork.Clock) *AchievementEngine {
	return &AchievementEngine{catalog: catalog, ledger: ledger, clock: clock}
}

// EnsureProgressRows creates zero-progress rows for every active catalog entry the user
// does not have yet. Existing rows are left alone.
func (e *AchievementEngine) EnsureProgressRows(tx *gorm.DB, userID string) error {
	var existing []string
	if err := tx.Model(&models.AchievementProgress{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &existing).Error; err != nil {
		return fmt.Errorf("list achievement progress: %w", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	var missing []models.AchievementProgress
	for _, def := range e.catalog.ActiveAchievements() {
		if _, ok := have[def.ID]; ok {
			continue
		}
		missing = append(missing, models.AchievementProgress{
			ID:            uuid.NewString(),
			UserID:        userID,
			AchievementID: def.ID,
			Progress:      0,
			MaxProgress:   def.ConditionValue,
		})
	}
	if len(missing) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoNothing: true,
	}).Create(&missing).Error; err != nil {
		return fmt.Errorf("backfill achievement progress: %w", err)
	}
	return nil
}

// Refresh re-measures every locked achievement of prog and unlocks the ones whose
// condition is met. Unlock XP is granted through the ledger. today decides the month
// used for savings-rate achievements.
func (e *AchievementEngine) Refresh(ctx context.Context, tx *gorm.DB, prog *models.UserProgressionProfile, provider UserStatsProvider, today time.Time) ([]UnlockedAchievement, error) {
	if err := e.EnsureProgressRows(tx, prog.UserID); err != nil {
		return nil, err
	}

	var rows []models.AchievementProgress
	if err := tx.Where("user_id = ? AND unlocked_at IS NULL", prog.UserID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load locked achievements: %w", err)
	}

	type pending struct {
		row  models.AchievementProgress
		def  models.AchievementDefinition
		cond Condition
	}
	var (
		work       []pending
		needsStats bool
	)
	for _, row := range rows {
		def, ok := e.catalog.Achievement(row.AchievementID)
		if !ok || !def.IsActive {
			continue // retired from the catalog
		}
		cond, _ := e.catalog.Condition(def.ID)
		needsStats = needsStats || cond.NeedsStats()
		work = append(work, pending{row: row, def: def, cond: cond})
	}
	sort.SliceStable(work, func(i, j int) bool { return work[i].def.SortOrder < work[j].def.SortOrder })

	ec := EvalContext{Profile: prog}
	if needsStats {
		stats, err := provider.Stats(ctx, prog.UserID, monthStart(today))
		if err != nil {
			return nil, err
		}
		ec.Stats = stats
	}

	unlocked := []UnlockedAchievement{}
	for _, w := range work {
		maxProgress := w.def.ConditionValue
		progress := clampProgress(w.cond.Measure(ec), maxProgress)
		unlock := progress >= w.def.ConditionValue

		if progress == w.row.Progress && maxProgress == w.row.MaxProgress && !unlock {
			continue
		}

		updates := map[string]any{
			"progress":     progress,
			"max_progress": maxProgress,
		}
		if unlock {
			updates["unlocked_at"] = e.clock.Now().UTC()
		}
		res := tx.Model(&models.AchievementProgress{}).
			Where("id = ? AND unlocked_at IS NULL", w.row.ID).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update achievement %s: %w", w.def.ID, res.Error)
		}
		if !unlock {
			continue
		}
		if res.RowsAffected == 0 {
			// someone else unlocked it between our read and write
			return nil, fmt.Errorf("unlock achievement %s: %w", w.def.ID, ErrConcurrentUpdate)
		}

		prog.TotalAchievements++
		grant, err := e.ledger.Grant(tx, prog, w.def.XPReward, models.XPReasonAchievement,
			map[string]any{"achievement_id": w.def.ID})
		if err != nil {
			return nil, err
		}
		unlocked = append(unlocked, UnlockedAchievement{
			ID:        w.def.ID,
			Name:      w.def.Name,
			Icon:      w.def.Icon,
			Rarity:    w.def.Rarity,
			XPReward:  w.def.XPReward,
			XPGranted: grant.Granted,
			LevelUp:   grant.LevelUp,
		})
	}
	return unlocked, nil
}

// clampProgress bounds raw progress to [0, max].
func clampProgress(raw, max int64) int64 {
	if raw < 0 {
		return 0
	}
	if raw > max {
		return max
	}
	return raw
}

// monthStart is the first day of day's month.
func monthStart(day time.Time) time.Time {
	y, m, _ := day.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
