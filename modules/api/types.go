package api

import (
	"time"

	domain "github.com/example/dm-chat-server/domain/user"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// PushTokenRequest sets the caller's push token.
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// TokenResponse represents an authentication token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// UserResponse is the public view of another user.
type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Online      bool       `json:"online"`
	LastActive  *time.Time `json:"last_active"`
}

// UserListResponse is the response of GET /api/v1/users.
type UserListResponse struct {
	Users []UserResponse `json:"users"`
}

// PresenceResponse is the response of GET /api/v1/users/:id/presence.
type PresenceResponse struct {
	UserID     string     `json:"user_id"`
	Online     bool       `json:"online"`
	LastActive *time.Time `json:"last_active"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

func toUserResponse(p domain.Profile) UserResponse {
	return UserResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Online:      p.Online,
		LastActive:  p.LastActive,
	}
}
