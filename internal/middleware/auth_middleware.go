package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/utils/jwt"
)

// Each route declares how it treats credentials: RequireAuth rejects missing
// or invalid tokens, OptionalAuth degrades them to anonymous access. Read
// paths use OptionalAuth so a bad token yields public-only visibility instead
// of an error.

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// RequireAuth rejects requests without a valid bearer token and stores the
// claims under "user".
func RequireAuth(tokens *jwt.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "No authentication token",
			})
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token is not valid",
			})
		}

		c.Locals("user", claims)
		return c.Next()
	}
}

// OptionalAuth stores claims when a valid token is present and continues
// anonymously otherwise.
func OptionalAuth(tokens *jwt.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearerToken(c); token != "" {
			if claims, err := tokens.ValidateToken(token); err == nil {
				c.Locals("user", claims)
			}
		}
		return c.Next()
	}
}

// RequireRole loads the authenticated user's row and rejects callers whose
// current role is not in the allowed set. Roles are checked against the
// database rather than the token so revocations take effect immediately.
func RequireRole(db *gorm.DB, roles ...model.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		var user model.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found",
			})
		}

		for _, role := range roles {
			if user.Role == role {
				c.Locals("account", &user)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Access denied. Trainer privileges required.",
		})
	}
}

// Claims returns the token claims set by RequireAuth or OptionalAuth, or nil
// for anonymous requests.
func Claims(c *fiber.Ctx) *jwt.Claims {
	if claims, ok := c.Locals("user").(*jwt.Claims); ok {
		return claims
	}
	return nil
}
