package api

import (
	"context"
	"errors"
	"strings"

	"github.com/example/dm-chat-server/modules/auth"
	"github.com/example/dm-chat-server/modules/presence"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// PresenceReader exposes presence snapshots to the REST layer.
type PresenceReader interface {
	Lookup(ctx context.Context, userID string) (presence.Snapshot, bool, error)
}

// ConnectionCounter reports live connection counts.
type ConnectionCounter interface {
	ClientCount() int
}

// Handlers contains HTTP handlers for the REST API.
type Handlers struct {
	authAdapter auth.AuthPort
	presence    PresenceReader
	connections ConnectionCounter
	logger      types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authAdapter auth.AuthPort, presence PresenceReader, connections ConnectionCounter, logger types.Logger) *Handlers {
	return &Handlers{
		authAdapter: authAdapter,
		presence:    presence,
		connections: connections,
		logger:      logger,
	}
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}
	if h.connections != nil {
		details["connected_clients"] = h.connections.ClientCount()
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// Register handles POST /api/v1/auth/register.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return badRequest(c, "Email, password and display_name are required")
	}

	profile, err := h.authAdapter.Register(c.UserContext(), auth.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toUserResponse(*profile))
}

// Login handles POST /api/v1/auth/login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	tokens, err := h.authAdapter.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.handleAuthError(c, err)
	}

	return c.JSON(TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		TokenType:    tokens.TokenType,
	})
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	tokens, err := h.authAdapter.RefreshTokens(c.UserContext(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired refresh token",
		})
	}

	return c.JSON(TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		TokenType:    tokens.TokenType,
	})
}

// ListUsers handles GET /api/v1/users. The caller is excluded.
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	identity, ok := currentIdentity(c)
	if !ok {
		return unauthenticated(c)
	}

	profiles, err := h.authAdapter.ListUsers(c.UserContext(), identity.UserID)
	if err != nil {
		return h.handleAuthError(c, err)
	}

	resp := UserListResponse{Users: make([]UserResponse, 0, len(profiles))}
	for _, p := range profiles {
		resp.Users = append(resp.Users, toUserResponse(p))
	}
	return c.JSON(resp)
}

// GetUser handles GET /api/v1/users/:id.
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	if _, ok := currentIdentity(c); !ok {
		return unauthenticated(c)
	}

	profile, err := h.authAdapter.FindUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.handleAuthError(c, err)
	}
	return c.JSON(toUserResponse(*profile))
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token.
func (h *Handlers) UpdatePushToken(c *fiber.Ctx) error {
	identity, ok := currentIdentity(c)
	if !ok {
		return unauthenticated(c)
	}

	var req PushTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.PushToken) == "" {
		return badRequest(c, "push_token is required")
	}

	if err := h.authAdapter.UpdatePushToken(c.UserContext(), identity.UserID, req.PushToken); err != nil {
		return h.handleAuthError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPresence handles GET /api/v1/users/:id/presence. The tracker snapshot
// wins; the stored user record is the fallback for users this process has
// not seen.
func (h *Handlers) GetPresence(c *fiber.Ctx) error {
	if _, ok := currentIdentity(c); !ok {
		return unauthenticated(c)
	}
	userID := c.Params("id")

	if h.presence != nil {
		snap, found, err := h.presence.Lookup(c.UserContext(), userID)
		if err != nil {
			h.logger.Warn("Presence lookup failed", "user_id", userID, "error", err)
		}
		if found {
			lastActive := snap.LastActive
			return c.JSON(PresenceResponse{UserID: userID, Online: snap.Online, LastActive: &lastActive})
		}
	}

	profile, err := h.authAdapter.FindUser(c.UserContext(), userID)
	if err != nil {
		return h.handleAuthError(c, err)
	}
	return c.JSON(PresenceResponse{UserID: profile.ID, Online: profile.Online, LastActive: profile.LastActive})
}

// handleAuthError maps auth sentinels to HTTP responses without exposing internals.
func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case errors.Is(err, auth.ErrUserExists):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case errors.Is(err, auth.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "User not found",
		})
	case errors.Is(err, auth.ErrInvalidEmail):
		return badRequest(c, "Invalid email format")
	case errors.Is(err, auth.ErrWeakPassword):
		return badRequest(c, "Password must be at least 8 characters")
	case errors.Is(err, auth.ErrPasswordTooLong):
		return badRequest(c, "Password must be at most 72 characters")
	case errors.Is(err, auth.ErrInvalidDisplayName):
		return badRequest(c, "Display name must be 1 to 64 characters")
	default:
		h.logger.Error("Internal error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "User not authenticated",
	})
}
