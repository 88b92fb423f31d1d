// Package middleware provides authentication, logging, tracing and metrics
// middleware for the HTTP server.
package middleware

import (
	"strings"

	"lumen/internal/auth"
	"lumen/internal/models"

	"github.com/gofiber/fiber/v2"
)

// LocalUserID is the fiber.Ctx local holding the authenticated user id.
const LocalUserID = "userID"

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthenticated(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
		Error: message,
		Code:  "UNAUTHENTICATED",
	})
}

// AuthRequired rejects requests without a valid bearer token and stores the
// token subject under LocalUserID.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return unauthenticated(c, "Authorization header required")
		}
		token, ok := bearerToken(c)
		if !ok {
			return unauthenticated(c, "Invalid authorization header format")
		}

		userID, err := auth.ParseToken(secret, token)
		if err != nil {
			return unauthenticated(c, "Invalid or expired token")
		}

		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

// OptionalAuth stores the token subject when a valid bearer token is sent and
// lets every request through.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := bearerToken(c); ok {
			if userID, err := auth.ParseToken(secret, token); err == nil {
				c.Locals(LocalUserID, userID)
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
