package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/vibescrow/backend/internal/auth"
	"go.uber.org/zap"
)

const CtxTicket = "game_ticket"

// TicketMiddleware requires a game ticket, taken from the ticket query
// parameter (WebSocket upgrades) or a Bearer Authorization header.
func TicketMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query("ticket")
		if tokenStr == "" {
			authHeader := c.Get("Authorization")
			tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == authHeader {
				tokenStr = ""
			}
		}
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing game ticket"})
		}

		claims, err := auth.ParseTicket(secret, tokenStr)
		if err != nil {
			log.Debug("game ticket rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired ticket"})
		}

		c.Locals(CtxTicket, claims)
		return c.Next()
	}
}

func GetTicket(c *fiber.Ctx) *auth.TicketClaims {
	claims, _ := c.Locals(CtxTicket).(*auth.TicketClaims)
	return claims
}
