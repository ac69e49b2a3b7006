package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"finance-gamification/logger"
	"finance-gamification/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityType is the kind of transaction the tracker reports.
type ActivityType string

const (
	ActivityExpense ActivityType = "expense"
	ActivityIncome  ActivityType = "income"
)

func (a ActivityType) valid() bool {
	return a == ActivityExpense || a == ActivityIncome
}

const (
	transactionXP           = 5
	describedTransactionXP  = 7
	defaultMaxRetries       = 3
	defaultHistoryLimit     = 20
	maxHistoryLimit         = 100
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

// ProgressionOptions wires the collaborators of ProgressionService. Zero values get defaults.
type ProgressionOptions struct {
	Catalog    *Catalog
	Stats      UserStatsProvider
	Clock      clockwork.Clock
	Location   *time.Location // calendar used for "today"
	Rand       *rand.Rand     // quest draws
	Publisher  EventPublisher
	Logger     *logger.Logger
	MaxRetries int // extra attempts after a version conflict
}

// ProgressionService is the activity dispatcher and read API of the progression engine.
type ProgressionService struct {
	DB *gorm.DB

	catalog      *Catalog
	ledger       *XPLedger
	streaks      StreakTracker
	achievements *AchievementEngine
	quests       *DailyQuestScheduler
	stats        UserStatsProvider
	clock        clockwork.Clock
	loc          *time.Location
	publisher    EventPublisher
	log          *logger.Logger
	maxRetries   int
	locks        *keyedMutex
}

func NewProgressionService(db *gorm.DB, opts ProgressionOptions) *ProgressionService {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Stats == nil {
		opts.Stats = NewGormStatsProvider(db)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Publisher == nil {
		opts.Publisher = NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}

	ledger := NewXPLedger(opts.Catalog.Levels, opts.Clock)
	return &ProgressionService{
		DB:           db,
		catalog:      opts.Catalog,
		ledger:       ledger,
		achievements: NewAchievementEngine(opts.Catalog, ledger, opts.Clock),
		quests:       NewDailyQuestScheduler(opts.Catalog, ledger, opts.Rand),
		stats:        opts.Stats,
		clock:        opts.Clock,
		loc:          opts.Location,
		publisher:    opts.Publisher,
		log:          opts.Logger,
		maxRetries:   opts.MaxRetries,
		locks:        newKeyedMutex(),
	}
}

// Catalog exposes the reference data the service runs on.
func (s *ProgressionService) Catalog() *Catalog { return s.catalog }

// Today is the current calendar date in the configured location.
func (s *ProgressionService) Today() time.Time {
	return dateOf(s.clock.Now(), s.loc)
}

// EnsureProgressRecord ensures a profile row (and its achievement progress rows) exists.
// On postgres the row is returned locked for the rest of tx.
func (s *ProgressionService) EnsureProgressRecord(tx *gorm.DB, userID string) (*models.UserProgressionProfile, error) {
	prog, err := s.findProfile(tx, userID)
	if err == nil {
		return prog, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.UserProgressionProfile{
		ID:                   uuid.NewString(),
		UserID:               userID,
		Level:                1,
		NotificationsEnabled: true,
		ShowOnHome:           true,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create progression profile: %w", err)
	}
	if err := s.achievements.EnsureProgressRows(tx, userID); err != nil {
		return nil, err
	}
	s.log.Info("🆕 Progression profile created", "user_id", userID)
	return s.findProfile(tx, userID)
}

func (s *ProgressionService) findProfile(tx *gorm.DB, userID string) (*models.UserProgressionProfile, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var prog models.UserProgressionProfile
	if err := q.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load progression profile: %w", err)
	}
	return &prog, nil
}

// saveProfile writes prog back if nobody else bumped its version in between.
func (s *ProgressionService) saveProfile(tx *gorm.DB, prog *models.UserProgressionProfile) error {
	res := tx.Model(&models.UserProgressionProfile{}).
		Where("id = ? AND version = ?", prog.ID, prog.Version).
		Updates(map[string]any{
			"level":                 prog.Level,
			"xp":                    prog.XP,
			"total_xp":              prog.TotalXP,
			"current_streak":        prog.CurrentStreak,
			"max_streak":            prog.MaxStreak,
			"last_activity_date":    prog.LastActivityDate,
			"total_transactions":    prog.TotalTransactions,
			"total_achievements":    prog.TotalAchievements,
			"notifications_enabled": prog.NotificationsEnabled,
			"show_on_home":          prog.ShowOnHome,
			"version":               prog.Version + 1,
			"updated_at":            s.clock.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("save progression profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	prog.Version++
	return nil
}

// withUserUnit runs fn as one transaction on the user's profile. Same-user units are
// serialized in-process; a version conflict from another process reruns the whole unit.
// fn must rebuild any result it reports on every attempt.
func (s *ProgressionService) withUserUnit(ctx context.Context, userID string, fn func(tx *gorm.DB, prog *models.UserProgressionProfile) error) (*models.UserProgressionProfile, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		var out *models.UserProgressionProfile
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			prog, err := s.EnsureProgressRecord(tx, userID)
			if err != nil {
				return err
			}
			before := *prog
			if err := fn(tx, prog); err != nil {
				return err
			}
			if *prog != before {
				if err := s.saveProfile(tx, prog); err != nil {
					return err
				}
			}
			out = prog
			return nil
		})
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		s.log.Warn("🔁 Progression unit conflicted, retrying", "user_id", userID, "attempt", attempt+1)
	}
	return nil, err
}

// ActivityResult is everything one reported transaction earned.
type ActivityResult struct {
	XPEarned         int64                 `json:"xp_earned"`
	Multiplier       float64               `json:"multiplier"`
	Streak           StreakResult          `json:"streak"`
	StreakBonusXP    int64                 `json:"streak_bonus_xp"`
	NewAchievements  []UnlockedAchievement `json:"new_achievements"`
	Quests           []QuestAdvance        `json:"quests"`
	DailyBonusEarned bool                  `json:"daily_bonus_earned"`
	TotalXPAdded     int64                 `json:"total_xp_added"`
	LevelUp          bool                  `json:"level_up"`
	OldLevel         int                   `json:"old_level"`
	NewLevel         int                   `json:"new_level"`
	Profile          ProfileView           `json:"profile"`
}

// QuestsCompleted flattens the quests finished by this activity.
func (r *ActivityResult) QuestsCompleted() []models.QuestInstance {
	var out []models.QuestInstance
	for _, q := range r.Quests {
		out = append(out, q.Completed...)
	}
	return out
}

// OnActivity is the only write entry point: one reported expense or income.
func (s *ProgressionService) OnActivity(ctx context.Context, userID string, activity ActivityType, hasDescription bool) (*ActivityResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if !activity.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidActivity, activity)
	}
	today := s.Today()

	var result *ActivityResult
	prog, err := s.withUserUnit(ctx, userID, func(tx *gorm.DB, prog *models.UserProgressionProfile) error {
		r := &ActivityResult{OldLevel: prog.Level, NewAchievements: []UnlockedAchievement{}}
		startXP := prog.TotalXP

		r.Streak = s.streaks.Touch(prog, today)
		if r.Streak.BonusXP > 0 {
			bonus, err := s.ledger.Grant(tx, prog, r.Streak.BonusXP, models.XPReasonStreakBonus,
				map[string]any{"milestone": r.Streak.Milestone})
			if err != nil {
				return err
			}
			r.StreakBonusXP = bonus.Granted
		}

		base := int64(transactionXP)
		if hasDescription {
			base = describedTransactionXP
		}
		grant, err := s.ledger.Grant(tx, prog, base, models.XPReasonTransaction, map[string]any{
			"activity_type":   string(activity),
			"has_description": hasDescription,
		})
		if err != nil {
			return err
		}
		r.XPEarned = grant.Granted
		r.Multiplier = grant.Multiplier
		prog.TotalTransactions++

		unlocked, err := s.achievements.Refresh(ctx, tx, prog, s.stats, today)
		if err != nil {
			return err
		}
		r.NewAchievements = unlocked

		questTypes := []models.QuestType{models.QuestType(activity), models.QuestTypeTransaction}
		if hasDescription {
			questTypes = append(questTypes, models.QuestTypeDescription)
		}
		for _, qt := range questTypes {
			adv, err := s.quests.Advance(tx, prog, today, qt)
			if err != nil {
				return err
			}
			r.Quests = append(r.Quests, adv)
			r.DailyBonusEarned = r.DailyBonusEarned || adv.BonusEarned
		}

		r.TotalXPAdded = prog.TotalXP - startXP
		r.NewLevel = prog.Level
		r.LevelUp = r.NewLevel > r.OldLevel
		result = r
		return nil
	})
	if err != nil {
		s.log.Error("❌ Failed to process activity", "user_id", userID, "activity", activity, "error", err)
		return nil, err
	}

	result.Profile = s.profileView(prog, LangRU)
	s.log.Info("🎮 Activity processed",
		"user_id", userID,
		"activity", activity,
		"xp_added", result.TotalXPAdded,
		"total_xp", prog.TotalXP,
		"level", prog.Level,
		"streak", prog.CurrentStreak,
	)
	s.publishActivity(ctx, prog, result)
	return result, nil
}

// publishActivity runs after commit; failures are logged only.
func (s *ProgressionService) publishActivity(ctx context.Context, prog *models.UserProgressionProfile, r *ActivityResult) {
	if !prog.NotificationsEnabled {
		return
	}
	now := s.clock.Now().UTC()
	var events []ProgressionEvent
	if r.Streak.Milestone > 0 {
		events = append(events, ProgressionEvent{Type: EventStreakMilestone, UserID: prog.UserID, OccurredAt: now,
			Payload: map[string]any{"milestone": r.Streak.Milestone, "bonus_xp": r.StreakBonusXP}})
	}
	for _, a := range r.NewAchievements {
		events = append(events, ProgressionEvent{Type: EventAchievementUnlocked, UserID: prog.UserID, OccurredAt: now,
			Payload: map[string]any{"achievement_id": a.ID, "name": a.Name, "icon": a.Icon, "rarity": a.Rarity, "xp": a.XPGranted}})
	}
	if r.DailyBonusEarned {
		events = append(events, ProgressionEvent{Type: EventDailyBonus, UserID: prog.UserID, OccurredAt: now,
			Payload: map[string]any{"xp": dailyAllCompletedBonus}})
	}
	if r.LevelUp {
		events = append(events, ProgressionEvent{Type: EventLevelUp, UserID: prog.UserID, OccurredAt: now,
			Payload: map[string]any{
				"old_level":  r.OldLevel,
				"new_level":  r.NewLevel,
				"level_name": s.catalog.Levels.Name(r.NewLevel, LangRU),
			}})
	}
	for _, evt := range events {
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.log.Warn("⚠️ Failed to publish progression event", "user_id", prog.UserID, "type", evt.Type, "error", err)
		}
	}
}

// ProfileView is the read model of a user's progression.
type ProfileView struct {
	Level                int     `json:"level"`
	LevelName            string  `json:"level_name"`
	XP                   int64   `json:"xp"`
	TotalXP              int64   `json:"total_xp"`
	XPProgress           int64   `json:"xp_progress"`
	XPForNextLevel       int64   `json:"xp_for_next_level"`
	XPPercentage         int     `json:"xp_percentage"`
	IsMaxLevel           bool    `json:"is_max_level"`
	CurrentStreak        int     `json:"current_streak"`
	MaxStreak            int     `json:"max_streak"`
	StreakMultiplier     float64 `json:"streak_multiplier"`
	LastActivityDate     string  `json:"last_activity_date,omitempty"`
	TotalTransactions    int64   `json:"total_transactions"`
	TotalAchievements    int64   `json:"total_achievements"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
	ShowOnHome           bool    `json:"show_on_home"`
}

func (v *ProfileView) fill(prog *models.UserProgressionProfile) {
	v.CurrentStreak = prog.CurrentStreak
	v.MaxStreak = prog.MaxStreak
	v.StreakMultiplier = StreakMultiplier(prog.CurrentStreak).InexactFloat64()
	if last, ok := prog.LastActivity(); ok {
		v.LastActivityDate = last.Format(models.QuestDateLayout)
	}
	v.TotalTransactions = prog.TotalTransactions
	v.TotalAchievements = prog.TotalAchievements
	v.NotificationsEnabled = prog.NotificationsEnabled
	v.ShowOnHome = prog.ShowOnHome
}

func (s *ProgressionService) profileView(prog *models.UserProgressionProfile, lang string) ProfileView {
	lp := s.catalog.Levels.Progress(prog.TotalXP)
	v := ProfileView{
		Level:          prog.Level,
		LevelName:      s.catalog.Levels.Name(prog.Level, lang),
		XP:             prog.XP,
		TotalXP:        prog.TotalXP,
		XPProgress:     lp.XPProgress,
		XPForNextLevel: lp.XPForNextLevel,
		XPPercentage:   lp.Percentage,
		IsMaxLevel:     prog.Level >= s.catalog.Levels.MaxLevel(),
	}
	v.fill(prog)
	return v
}

// GetProfile returns the user's profile, creating it on first access.
func (s *ProgressionService) GetProfile(ctx context.Context, userID, lang string) (*ProfileView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	prog, err := s.withUserUnit(ctx, userID, func(*gorm.DB, *models.UserProgressionProfile) error { return nil })
	if err != nil {
		return nil, err
	}
	v := s.profileView(prog, lang)
	return &v, nil
}

// SettingsUpdate carries optional display preference changes.
type SettingsUpdate struct {
	NotificationsEnabled *bool `json:"notifications_enabled"`
	ShowOnHome           *bool `json:"show_on_home"`
}

// UpdateSettings changes display preferences only; progression values are untouched.
func (s *ProgressionService) UpdateSettings(ctx context.Context, userID string, upd SettingsUpdate) (*ProfileView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	prog, err := s.withUserUnit(ctx, userID, func(_ *gorm.DB, prog *models.UserProgressionProfile) error {
		if upd.NotificationsEnabled != nil {
			prog.NotificationsEnabled = *upd.NotificationsEnabled
		}
		if upd.ShowOnHome != nil {
			prog.ShowOnHome = *upd.ShowOnHome
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	v := s.profileView(prog, LangRU)
	return &v, nil
}

// XPHistoryPage is a newest-first slice of the XP ledger.
type XPHistoryPage struct {
	Entries []models.XPHistoryEntry `json:"entries"`
	Limit   int                     `json:"limit"`
}

// GetXPHistory returns the latest ledger entries, limit clamped to [1,100] (0 means 20).
func (s *ProgressionService) GetXPHistory(ctx context.Context, userID string, limit int) (*XPHistoryPage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	limit = clampLimit(limit, defaultHistoryLimit, maxHistoryLimit)
	entries := []models.XPHistoryEntry{}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load xp history: %w", err)
	}
	return &XPHistoryPage{Entries: entries, Limit: limit}, nil
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	Level         int    `json:"level"`
	LevelName     string `json:"level_name"`
	TotalXP       int64  `json:"total_xp"`
	CurrentStreak int    `json:"current_streak"`
	IsCurrentUser bool   `json:"is_current_user"`
}

// Leaderboard is the top of the XP ranking plus the caller's own rank.
type Leaderboard struct {
	Entries      []LeaderboardEntry `json:"entries"`
	UserPosition int64              `json:"user_position"`
	UserTotalXP  int64              `json:"user_total_xp"`
}

// GetLeaderboard ranks users by total XP (ties by earliest profile), limit clamped to [1,50].
// Users without a profile are positioned after everyone that has XP.
func (s *ProgressionService) GetLeaderboard(ctx context.Context, userID string, limit int, lang string) (*Leaderboard, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	limit = clampLimit(limit, defaultLeaderboardLimit, maxLeaderboardLimit)
	db := s.DB.WithContext(ctx)

	var top []models.UserProgressionProfile
	if err := db.Order("total_xp DESC").Order("created_at ASC").Order("user_id ASC").
		Limit(limit).Find(&top).Error; err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	board := &Leaderboard{Entries: make([]LeaderboardEntry, 0, len(top))}
	for i, p := range top {
		board.Entries = append(board.Entries, LeaderboardEntry{
			Rank:          i + 1,
			UserID:        p.UserID,
			Level:         p.Level,
			LevelName:     s.catalog.Levels.Name(p.Level, lang),
			TotalXP:       p.TotalXP,
			CurrentStreak: p.CurrentStreak,
			IsCurrentUser: p.UserID == userID,
		})
	}

	var self models.UserProgressionProfile
	err := db.Where("user_id = ?", userID).First(&self).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load caller profile: %w", err)
	}
	board.UserTotalXP = self.TotalXP

	var ahead int64
	if err := db.Model(&models.UserProgressionProfile{}).
		Where("total_xp > ?", self.TotalXP).
		Count(&ahead).Error; err != nil {
		return nil, fmt.Errorf("rank caller: %w", err)
	}
	board.UserPosition = ahead + 1
	return board, nil
}

func clampLimit(limit, def, max int) int {
	if limit == 0 {
		return def
	}
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}
