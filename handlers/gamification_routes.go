// handlers/gamification_routes.go
package handlers

import (
	"errors"
	"strconv"

	"finance-gamification/logger"
	"finance-gamification/middleware"
	"finance-gamification/services"

	"github.com/gofiber/fiber/v2"
)

type activityRequest struct {
	ActivityType   services.ActivityType `json:"activity_type"`
	HasDescription bool                  `json:"has_description"`
}

func SetupGamificationRoutes(app *fiber.App, progressionService *services.ProgressionService, log *logger.Logger) {
	// 🔐 every route needs the user context forwarded by the gateway
	g := app.Group("/gamification", middleware.UserContextMiddleware(log))

	g.Get("/profile", func(c *fiber.Ctx) error {
		profile, err := progressionService.GetProfile(c.UserContext(), middleware.UserID(c), middleware.Lang(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, profile)
	})

	g.Get("/achievements", func(c *fiber.Ctx) error {
		view, err := progressionService.GetAchievements(c.UserContext(), middleware.UserID(c), c.Query("category"), middleware.Lang(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, view)
	})

	g.Get("/achievements/:id", func(c *fiber.Ctx) error {
		view, err := progressionService.GetAchievement(c.UserContext(), middleware.UserID(c), c.Params("id"), middleware.Lang(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, view)
	})

	g.Get("/daily-quests", func(c *fiber.Ctx) error {
		view, err := progressionService.GetDailyQuests(c.UserContext(), middleware.UserID(c), middleware.Lang(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, view)
	})

	g.Get("/xp-history", func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return badRequest(c, "limit must be a number")
		}
		page, err := progressionService.GetXPHistory(c.UserContext(), middleware.UserID(c), limit)
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, page)
	})

	g.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return badRequest(c, "limit must be a number")
		}
		board, err := progressionService.GetLeaderboard(c.UserContext(), middleware.UserID(c), limit, middleware.Lang(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, board)
	})

	g.Post("/settings", func(c *fiber.Ctx) error {
		var req services.SettingsUpdate
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		profile, err := progressionService.UpdateSettings(c.UserContext(), middleware.UserID(c), req)
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, profile)
	})

	// internal hook called by the transaction service after an expense/income is stored
	g.Post("/activity", func(c *fiber.Ctx) error {
		var req activityRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		result, err := progressionService.OnActivity(c.UserContext(), middleware.UserID(c), req.ActivityType, req.HasDescription)
		if err != nil {
			return respondError(c, log, err)
		}
		return ok(c, result)
	})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": msg})
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *fiber.Ctx, log *logger.Logger, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidUserID), errors.Is(err, services.ErrInvalidActivity):
		return badRequest(c, err.Error())
	case errors.Is(err, services.ErrAchievementNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrConcurrentUpdate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":   false,
			"error":     "progress was updated concurrently, try again",
			"retryable": true,
		})
	}
	log.Error("❌ Gamification request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success":   false,
		"error":     "internal error",
		"retryable": services.IsRetryable(err),
	})
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
