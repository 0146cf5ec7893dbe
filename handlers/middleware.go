package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"marketchat/auth"
	apperrors "marketchat/errors"
)

const userIDKey = "userID"

// RequireAuth rejects any request without a valid bearer token and exposes
// the authenticated user ID through the request locals.
func RequireAuth(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok {
			return unauthorized(c)
		}
		userID, err := tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			return unauthorized(c)
		}
		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": apperrors.ErrUnauthenticated.Error(),
	})
}

func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals(userIDKey).(string)
	return userID
}
