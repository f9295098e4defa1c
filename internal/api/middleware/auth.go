package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/auth"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

const (
	// LocalUserID is the key to retrieve the user id from context
	LocalUserID = "user_id"
	// LocalClaims is the key to retrieve the token claims from context
	LocalClaims = "claims"
)

// TokenValidator verifies bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// OptionalAuth authenticates the request when a bearer token is present.
// A malformed or expired token is rejected rather than treated as anonymous.
func OptionalAuth(tokens TokenValidator, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			// Browsers cannot set headers on websocket upgrades
			token = c.Query("access_token")
		}
		if token == "" {
			return c.Next()
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			logger.Debug("bearer token rejected", slog.Any("error", err))
			return domain.ErrUnauthorized
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalClaims, claims)

		return c.Next()
	}
}

// RequireAuth rejects requests not authenticated by OptionalAuth
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals(LocalClaims).(*auth.Claims); !ok {
			return domain.ErrUnauthorized
		}
		return c.Next()
	}
}

// RequireRole rejects authenticated users without role
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(LocalClaims).(*auth.Claims)
		if !ok {
			return domain.ErrUnauthorized
		}
		if claims.Role != role {
			return domain.ErrForbidden
		}
		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// GetUserID retrieves the authenticated user id from context
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals(LocalUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return userID, nil
}

// OptionalUserID returns the user id when the request is authenticated
func OptionalUserID(c *fiber.Ctx) *uuid.UUID {
	userID, ok := c.Locals(LocalUserID).(uuid.UUID)
	if !ok {
		return nil
	}
	return &userID
}
