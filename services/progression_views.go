package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"finance-gamification/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementView is one catalog entry merged with the user's progress.
type AchievementView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Category    string     `json:"category"`
	Rarity      string     `json:"rarity"`
	XPReward    int64      `json:"xp_reward"`
	Progress    int64      `json:"progress"`
	MaxProgress int64      `json:"max_progress"`
	Percentage  int        `json:"percentage"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

// CategorySummary counts unlocked entries of one category.
type CategorySummary struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Unlocked int    `json:"unlocked"`
}

// AchievementsView is the user's achievement list plus totals.
type AchievementsView struct {
	Achievements []AchievementView `json:"achievements"`
	Categories   []CategorySummary `json:"categories"`
	Total        int               `json:"total"`
	Unlocked     int               `json:"unlocked"`
	Percentage   int               `json:"percentage"`
}

// GetAchievements refreshes progress and lists the user's achievements in catalog order.
// A non-empty category narrows the list; totals always cover the whole catalog.
func (s *ProgressionService) GetAchievements(ctx context.Context, userID, category, lang string) (*AchievementsView, error) {
	views, err := s.refreshedAchievements(ctx, userID, lang)
	if err != nil {
		return nil, err
	}
	return SummarizeAchievements(views, category), nil
}

// GetAchievement returns one achievement of the user after a refresh.
func (s *ProgressionService) GetAchievement(ctx context.Context, userID, achievementID, lang string) (*AchievementView, error) {
	if _, ok := s.catalog.Achievement(achievementID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrAchievementNotFound, achievementID)
	}
	views, err := s.refreshedAchievements(ctx, userID, lang)
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].ID == achievementID {
			return &views[i], nil
		}
	}
	// known but retired
	return nil, fmt.Errorf("%w: %s", ErrAchievementNotFound, achievementID)
}

func (s *ProgressionService) refreshedAchievements(ctx context.Context, userID, lang string) ([]AchievementView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	today := s.Today()

	var (
		rows     []models.AchievementProgress
		unlocked []UnlockedAchievement
		oldLevel int
	)
	prog, err := s.withUserUnit(ctx, userID, func(tx *gorm.DB, prog *models.UserProgressionProfile) error {
		var err error
		oldLevel = prog.Level
		unlocked, err = s.achievements.Refresh(ctx, tx, prog, s.stats, today)
		if err != nil {
			return err
		}
		rows = nil
		return tx.Where("user_id = ?", userID).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	if len(unlocked) > 0 {
		s.publishActivity(ctx, prog, &ActivityResult{
			NewAchievements: unlocked,
			OldLevel:        oldLevel,
			NewLevel:        prog.Level,
			LevelUp:         prog.Level > oldLevel,
		})
	}

	byID := make(map[string]models.AchievementProgress, len(rows))
	for _, r := range rows {
		byID[r.AchievementID] = r
	}
	views := make([]AchievementView, 0, len(s.catalog.Achievements))
	for _, def := range s.catalog.ActiveAchievements() {
		row, ok := byID[def.ID]
		if !ok {
			continue
		}
		views = append(views, AchievementView{
			ID:          def.ID,
			Name:        pickLocalized(lang, def.Name, def.NameEN, def.NameKY),
			Description: pickLocalized(lang, def.Description, def.DescriptionEN, def.DescriptionKY),
			Icon:        def.Icon,
			Category:    def.Category,
			Rarity:      def.Rarity,
			XPReward:    def.XPReward,
			Progress:    row.Progress,
			MaxProgress: row.MaxProgress,
			Percentage:  percentOf(row.Progress, row.MaxProgress),
			Unlocked:    row.Unlocked(),
			UnlockedAt:  row.UnlockedAt,
		})
	}
	return views, nil
}

// SummarizeAchievements groups views by category (first-seen order) and filters them.
func SummarizeAchievements(views []AchievementView, category string) *AchievementsView {
	out := &AchievementsView{Achievements: []AchievementView{}, Categories: []CategorySummary{}}
	index := map[string]int{}
	for _, v := range views {
		i, ok := index[v.Category]
		if !ok {
			i = len(out.Categories)
			index[v.Category] = i
			out.Categories = append(out.Categories, CategorySummary{Category: v.Category})
		}
		out.Categories[i].Total++
		out.Total++
		if v.Unlocked {
			out.Categories[i].Unlocked++
			out.Unlocked++
		}
		if category == "" || v.Category == category {
			out.Achievements = append(out.Achievements, v)
		}
	}
	out.Percentage = percentOf(int64(out.Unlocked), int64(out.Total))
	return out
}

// QuestView is a quest of today's set in the user's language.
type QuestView struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Type      models.QuestType `json:"type"`
	Progress  int              `json:"progress"`
	Target    int              `json:"target"`
	XP        int64            `json:"xp"`
	Completed bool             `json:"completed"`
}

// DailyQuestsView is today's quest set.
type DailyQuestsView struct {
	Date         string      `json:"date"`
	Quests       []QuestView `json:"quests"`
	AllCompleted bool        `json:"all_completed"`
	BonusClaimed bool        `json:"bonus_claimed"`
	BonusXP      int64       `json:"bonus_xp"`
}

// GetDailyQuests returns today's set, drawing it on first access of the day.
func (s *ProgressionService) GetDailyQuests(ctx context.Context, userID, lang string) (*DailyQuestsView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	today := s.Today()

	var set *models.DailyQuestSet
	_, err := s.withUserUnit(ctx, userID, func(tx *gorm.DB, prog *models.UserProgressionProfile) error {
		var err error
		set, err = s.quests.GetOrCreate(tx, prog.UserID, today)
		return err
	})
	if err != nil {
		return nil, err
	}

	view := &DailyQuestsView{
		Date:         set.QuestDate,
		Quests:       make([]QuestView, 0, len(set.Quests)),
		AllCompleted: set.AllCompleted,
		BonusClaimed: set.BonusClaimed,
		BonusXP:      dailyAllCompletedBonus,
	}
	for _, q := range set.Quests {
		title := q.ID
		if tpl, ok := s.catalog.Quest(q.ID); ok {
			title = tpl.Title(lang)
		}
		view.Quests = append(view.Quests, QuestView{
			ID:        q.ID,
			Title:     title,
			Type:      q.Type,
			Progress:  q.Progress,
			Target:    q.Target,
			XP:        q.XP,
			Completed: q.Completed,
		})
	}
	return view, nil
}

// PruneQuestSets deletes quest sets dated before cutoff and returns how many went.
// Past sets are never read again by the engine.
func (s *ProgressionService) PruneQuestSets(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("quest_date < ?", cutoff.Format(models.QuestDateLayout)).
		Delete(&models.DailyQuestSet{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune daily quests: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SeedCatalog upserts the achievement catalog into achievement_definitions so other
// services of the tracker can join against it.
func (s *ProgressionService) SeedCatalog(ctx context.Context) error {
	defs := make([]models.AchievementDefinition, len(s.catalog.Achievements))
	copy(defs, s.catalog.Achievements)
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].SortOrder < defs[j].SortOrder })
	if len(defs) == 0 {
		return nil
	}
	// Create writes the column default back into defs, so read the flags first
	var retired []string
	for _, def := range defs {
		if !def.IsActive {
			retired = append(retired, def.ID)
		}
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&defs).Error; err != nil {
			return fmt.Errorf("seed achievements: %w", err)
		}
		if len(retired) == 0 {
			return nil
		}
		if err := tx.Model(&models.AchievementDefinition{}).
			Where("id IN ?", retired).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("retire achievements %v: %w", retired, err)
		}
		return nil
	})
}
