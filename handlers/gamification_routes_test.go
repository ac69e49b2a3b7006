package handlers

import (
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finance-gamification/logger"
	"finance-gamification/models"
	"finance-gamification/services"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "routes.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.UserProgressionProfile{},
		&models.AchievementDefinition{},
		&models.AchievementProgress{},
		&models.XPHistoryEntry{},
		&models.DailyQuestSet{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	svc := services.NewProgressionService(db, services.ProgressionOptions{
		Stats: services.StaticStats{ExpenseCount: 1},
		Clock: clockwork.NewFakeClockAt(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)),
		Rand:  rand.New(rand.NewPCG(1, 2)),
	})
	app := fiber.New()
	SetupGamificationRoutes(app, svc, logger.Nop())
	return app
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Retryable bool            `json:"retryable"`
}

func do(t *testing.T, app *fiber.App, method, path, userID, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("Accept-Language", "en")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
	}
	return resp.StatusCode, env
}

func TestActivityThenProfile(t *testing.T) {
	app := newTestApp(t)

	status, env := do(t, app, "POST", "/gamification/activity", "u1", `{"activity_type":"expense","has_description":true}`)
	if status != fiber.StatusOK || !env.Success {
		t.Fatalf("activity: %d %+v", status, env)
	}
	var result services.ActivityResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.XPEarned != 7 || len(result.NewAchievements) != 1 {
		t.Fatalf("result = %+v", result)
	}

	status, env = do(t, app, "GET", "/gamification/profile", "u1", "")
	if status != fiber.StatusOK {
		t.Fatalf("profile: %d %+v", status, env)
	}
	var profile services.ProfileView
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatal(err)
	}
	if profile.TotalTransactions != 1 || profile.LevelName != "Novice" || profile.TotalXP != result.TotalXPAdded {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestReadRoutes(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{
		"/gamification/achievements",
		"/gamification/achievements?category=streaks",
		"/gamification/achievements/first_expense",
		"/gamification/daily-quests",
		"/gamification/xp-history?limit=5",
		"/gamification/leaderboard",
	} {
		status, env := do(t, app, "GET", path, "u1", "")
		if status != fiber.StatusOK || !env.Success {
			t.Errorf("GET %s = %d %+v", path, status, env)
		}
	}

	status, env := do(t, app, "POST", "/gamification/settings", "u1", `{"show_on_home":false}`)
	if status != fiber.StatusOK {
		t.Fatalf("settings: %d %+v", status, env)
	}
	var profile services.ProfileView
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatal(err)
	}
	if profile.ShowOnHome {
		t.Fatal("show_on_home not updated")
	}
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		name, method, path, user, body string
		want                           int
	}{
		{name: "missing user", method: "GET", path: "/gamification/profile", want: fiber.StatusUnauthorized},
		{name: "bad activity", method: "POST", path: "/gamification/activity", user: "u1", body: `{"activity_type":"budget"}`, want: fiber.StatusBadRequest},
		{name: "bad json", method: "POST", path: "/gamification/activity", user: "u1", body: `{`, want: fiber.StatusBadRequest},
		{name: "unknown achievement", method: "GET", path: "/gamification/achievements/nope", user: "u1", want: fiber.StatusNotFound},
		{name: "bad limit", method: "GET", path: "/gamification/xp-history?limit=ten", user: "u1", want: fiber.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, env := do(t, app, tc.method, tc.path, tc.user, tc.body)
			if status != tc.want || env.Success {
				t.Fatalf("status = %d (%+v), want %d", status, env, tc.want)
			}
		})
	}
}
