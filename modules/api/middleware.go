package api

import (
	"errors"

	domain "github.com/example/dm-chat-server/domain/user"
	"github.com/example/dm-chat-server/modules/auth"
	"github.com/example/dm-chat-server/modules/session"
	"github.com/gofiber/fiber/v2"
)

const (
	// UserContextKey is the key used to store the verified identity in the Fiber context.
	UserContextKey = "user"

	// authUnavailableMessage is reported when verification itself failed
	// rather than the credential.
	authUnavailableMessage = "Authentication service unavailable, please try again"
)

// AuthMiddleware creates a middleware that verifies the bearer credential.
func AuthMiddleware(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := authAdapter.VerifyCredential(c.UserContext(), c.Get("Authorization"))
		if err != nil && !session.IsAuthError(err) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error:   "service_unavailable",
				Message: authUnavailableMessage,
			})
		}
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: authErrorMessage(err),
			})
		}

		c.Locals(UserContextKey, identity)
		return c.Next()
	}
}

// authErrorMessage is shared by the REST middleware and the WebSocket
// handshake so that both report credential failures the same way.
func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "Authorization header is required"
	case errors.Is(err, auth.ErrMalformedCredential):
		return "Invalid authorization header format. Use: Bearer <token>"
	case errors.Is(err, auth.ErrInvalidCredential):
		return "Invalid or expired token"
	case errors.Is(err, session.ErrIdentityMismatch):
		return "User id does not match token"
	default:
		return "Authentication failed"
	}
}

func currentIdentity(c *fiber.Ctx) (*domain.Identity, bool) {
	identity, ok := c.Locals(UserContextKey).(*domain.Identity)
	return identity, ok && identity != nil
}
