// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"finance-gamification/logger"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware validates the Bearer token the API gateway (or the transaction
// service) attaches to every call.
func GatewayAuthMiddleware(expectedToken string, log *logger.Logger) fiber.Handler {
	if expectedToken == "" {
		log.Fatal("❌ GAMIFICATION_SERVICE_TOKEN is not set, service cannot authenticate Gateway")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn("🚫 [GATEWAY_AUTH] Missing Authorization header", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "gateway authentication token missing",
			})
		}

		// raw tokens are accepted too
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Warn("❌ [GATEWAY_AUTH] Invalid token", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}
