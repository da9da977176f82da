package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	UserHeader = "X-User-ID"
	userIDKey  = "userID"
)

// Identity takes the acting farmer from the X-User-ID header set by the gateway.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(UserHeader))
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+UserHeader+" header")
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid "+UserHeader+" header")
		}
		c.Locals(userIDKey, id)
		return c.Next()
	}
}

// UserID returns the identity stored by Identity, or uuid.Nil.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(userIDKey).(uuid.UUID)
	return id
}
