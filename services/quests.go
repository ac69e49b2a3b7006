package services

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"finance-gamification/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	questsPerDay           = 3
	dailyAllCompletedBonus = 10
)

// QuestAdvance reports one Advance call.
type QuestAdvance struct {
	QuestType    models.QuestType       `json:"quest_type"`
	Updated      bool                   `json:"updated"`
	Completed    []models.QuestInstance `json:"quest_completed,omitempty"`
	AllCompleted bool                   `json:"all_completed"`
	BonusEarned  bool                   `json:"bonus_earned"`
	XPGranted    int64                  `json:"xp_granted"`
}

// DailyQuestScheduler draws the per-day quest subset and tracks its progress.
type DailyQuestScheduler struct {
	catalog *Catalog
	ledger  *XPLedger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewDailyQuestScheduler uses rng for draws; pass a seeded generator for reproducible sets.
func NewDailyQuestScheduler(catalog *Catalog, ledger *XPLedger, rng *rand.Rand) *DailyQuestScheduler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &DailyQuestScheduler{catalog: catalog, ledger: ledger, rng: rng}
}

// draw picks up to questsPerDay distinct templates, without replacement.
func (s *DailyQuestScheduler) draw() []models.QuestInstance {
	pool := s.catalog.Quests
	n := questsPerDay
	if n > len(pool) {
		n = len(pool)
	}
	s.mu.Lock()
	order := s.rng.Perm(len(pool))
	s.mu.Unlock()

	out := make([]models.QuestInstance, 0, n)
	for _, idx := range order[:n] {
		tpl := pool[idx]
		out = append(out, models.QuestInstance{
			ID:     tpl.ID,
			Type:   tpl.Type,
			Target: tpl.Target,
			XP:     tpl.XP,
		})
	}
	return out
}

// GetOrCreate returns the quest set of userID for today, drawing it on first access.
// Concurrent creators converge on whichever set was stored first.
func (s *DailyQuestScheduler) GetOrCreate(tx *gorm.DB, userID string, today time.Time) (*models.DailyQuestSet, error) {
	key := today.Format(models.QuestDateLayout)

	set, err := s.find(tx, userID, key)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.DailyQuestSet{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuestDate: key,
		Quests:    s.draw(),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "quest_date"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create daily quests: %w", err)
	}
	return s.find(tx, userID, key)
}

func (s *DailyQuestScheduler) find(tx *gorm.DB, userID, key string) (*models.DailyQuestSet, error) {
	var set models.DailyQuestSet
	err := tx.Where("user_id = ? AND quest_date = ?", userID, key).First(&set).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load daily quests: %w", err)
	}
	return &set, nil
}

// Advance adds one step to every open quest of questType in today's set, grants quest XP on
// completion and the all-completed bonus the first time every quest is done.
func (s *DailyQuestScheduler) Advance(tx *gorm.DB, prog *models.UserProgressionProfile, today time.Time, questType models.QuestType) (QuestAdvance, error) {
	res := QuestAdvance{QuestType: questType}

	set, err := s.GetOrCreate(tx, prog.UserID, today)
	if err != nil {
		return res, err
	}

	quests := make([]models.QuestInstance, len(set.Quests))
	copy(quests, set.Quests)

	allDone := len(quests) > 0
	for i := range quests {
		q := &quests[i]
		if q.Type == questType && !q.Completed {
			q.Progress++
			res.Updated = true
			if q.Progress >= q.Target {
				q.Progress = q.Target
				q.Completed = true
				grant, err := s.ledger.Grant(tx, prog, q.XP, models.XPReasonDailyQuest,
					map[string]any{"quest_id": q.ID})
				if err != nil {
					return res, err
				}
				res.XPGranted += grant.Granted
				res.Completed = append(res.Completed, *q)
			}
		}
		if !q.Completed {
			allDone = false
		}
	}

	if allDone && !set.AllCompleted {
		set.AllCompleted = true
		set.BonusClaimed = true
		grant, err := s.ledger.Grant(tx, prog, dailyAllCompletedBonus, models.XPReasonDailyAllCompleted,
			map[string]any{"quest_date": set.QuestDate})
		if err != nil {
			return res, err
		}
		res.XPGranted += grant.Granted
		res.BonusEarned = true
	}
	res.AllCompleted = set.AllCompleted

	if !res.Updated && !res.BonusEarned {
		return res, nil
	}
	if err := tx.Model(&models.DailyQuestSet{}).
		Where("id = ?", set.ID).
		Updates(map[string]any{
			"quests":        datatypes.JSONSlice[models.QuestInstance](quests),
			"all_completed": set.AllCompleted,
			"bonus_claimed": set.BonusClaimed,
		}).Error; err != nil {
		return res, fmt.Errorf("save daily quests: %w", err)
	}
	return res, nil
}
