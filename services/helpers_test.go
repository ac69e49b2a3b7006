package services

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finance-gamification/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testNow is a fixed mid-day instant so date arithmetic never straddles midnight.
var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "gamification.db") +
		"?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.UserProgressionProfile{},
		&models.AchievementDefinition{},
		&models.AchievementProgress{},
		&models.XPHistoryEntry{},
		&models.DailyQuestSet{},
		&models.Expense{},
		&models.Income{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type testEnv struct {
	db        *gorm.DB
	svc       *ProgressionService
	clock     *clockwork.FakeClock
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T, catalog *Catalog, stats UserStatsProvider) *testEnv {
	t.Helper()
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if stats == nil {
		stats = StaticStats{}
	}
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(testNow)
	pub := &recordingPublisher{}
	svc := NewProgressionService(db, ProgressionOptions{
		Catalog:   catalog,
		Stats:     stats,
		Clock:     clock,
		Rand:      rand.New(rand.NewPCG(7, 11)),
		Publisher: pub,
	})
	return &testEnv{db: db, svc: svc, clock: clock, publisher: pub}
}

func mustCatalog(t *testing.T, achievements []models.AchievementDefinition, quests []QuestTemplate) *Catalog {
	t.Helper()
	c, err := NewCatalog(DefaultLevelEntries(), achievements, quests)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func questPool(t *testing.T, ids ...string) []QuestTemplate {
	t.Helper()
	all := map[string]QuestTemplate{}
	for _, q := range DefaultQuestPool() {
		all[q.ID] = q
	}
	out := make([]QuestTemplate, 0, len(ids))
	for _, id := range ids {
		q, ok := all[id]
		if !ok {
			t.Fatalf("unknown quest template %s", id)
		}
		out = append(out, q)
	}
	return out
}

func achievementsByID(t *testing.T, ids ...string) []models.AchievementDefinition {
	t.Helper()
	all := map[string]models.AchievementDefinition{}
	for _, a := range DefaultAchievements() {
		all[a.ID] = a
	}
	out := make([]models.AchievementDefinition, 0, len(ids))
	for _, id := range ids {
		a, ok := all[id]
		if !ok {
			t.Fatalf("unknown achievement %s", id)
		}
		out = append(out, a)
	}
	return out
}

func seedProfile(t *testing.T, db *gorm.DB, p models.UserProgressionProfile) models.UserProgressionProfile {
	t.Helper()
	if p.ID == "" {
		p.ID = "prof-" + p.UserID
	}
	if p.Level == 0 {
		p.Level = 1
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return p
}

func loadProfile(t *testing.T, db *gorm.DB, userID string) models.UserProgressionProfile {
	t.Helper()
	var p models.UserProgressionProfile
	if err := db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		t.Fatalf("load profile %s: %v", userID, err)
	}
	return p
}

func historySum(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var sum int64
	if err := db.Model(&models.XPHistoryEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&sum); err != nil {
		t.Fatalf("sum history: %v", err)
	}
	return sum
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ProgressionEvent
}

func (r *recordingPublisher) Publish(_ context.Context, evt ProgressionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
