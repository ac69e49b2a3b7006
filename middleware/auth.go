// middleware/auth.go
package middleware

import (
	"strings"

	"finance-gamification/logger"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by UserContextMiddleware.
const (
	LocalUserID = "user_id"
	LocalLang   = "lang"
)

// UserContextMiddleware extracts the user identity the gateway forwards in X-User-ID and
// the display language from X-Language or Accept-Language.
func UserContextMiddleware(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn("❌ [USER_CTX] X-User-ID required but missing", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		lang := c.Get("X-Language")
		if lang == "" {
			lang = c.Get(fiber.HeaderAcceptLanguage)
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalLang, lang)

		log.Debug("👤 [USER_CTX] request", "user_id", userID, "lang", lang, "path", c.Path())
		return c.Next()
	}
}

// UserID returns the id stored by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// Lang returns the raw language hint stored by UserContextMiddleware.
func Lang(c *fiber.Ctx) string {
	lang, _ := c.Locals(LocalLang).(string)
	return lang
}
