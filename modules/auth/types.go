package auth

import (
	"time"

	domain "github.com/example/dm-chat-server/domain/user"
)

// Service names registered in the auth module's container.
const (
	ServiceRegister        = "register"
	ServiceLogin           = "login"
	ServiceRefreshToken    = "refresh-token"
	ServiceValidateToken   = "validate-token"
	ServiceGetUser         = "get-user"
	ServiceListUsers       = "list-users"
	ServiceUpdatePresence  = "update-presence"
	ServiceUpdatePushToken = "update-push-token"
)

// Error codes carried in replies so callers can map them back to sentinels.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeExpiredToken       = "expired_token"
	CodeUserNotFound       = "user_not_found"
	CodeUserExists         = "user_exists"
	CodeValidation         = "validation_error"
	CodeInternal           = "internal_error"
)

// Status is embedded in replies that may carry a domain failure.
type Status struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// RegisterResponse represents a user registration response.
type RegisterResponse struct {
	Status
	User domain.Profile `json:"user"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a user login response with tokens.
type LoginResponse struct {
	Status
	Tokens domain.TokenPair `json:"tokens"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid       bool   `json:"valid"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse represents a get user response.
type GetUserResponse struct {
	Status
	User domain.Profile `json:"user"`
}

// ListUsersRequest lists every user except ExcludeID.
type ListUsersRequest struct {
	ExcludeID string `json:"exclude_id,omitempty"`
}

// ListUsersResponse carries the user directory.
type ListUsersResponse struct {
	Status
	Users []domain.Profile `json:"users"`
}

// UpdatePresenceRequest sets a user's online flag and last-active time.
type UpdatePresenceRequest struct {
	UserID     string    `json:"user_id"`
	Online     bool      `json:"online"`
	LastActive time.Time `json:"last_active"`
}

// UpdatePushTokenRequest stores a device push token.
type UpdatePushTokenRequest struct {
	UserID    string `json:"user_id"`
	PushToken string `json:"push_token"`
}

// AckResponse is returned by write-only services.
type AckResponse struct {
	Status
	Success bool `json:"success"`
}
