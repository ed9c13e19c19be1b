package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/dm-chat-server/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort is what other modules use to reach the auth module.
type AuthPort interface {
	VerifyCredential(ctx context.Context, credential string) (*domain.Identity, error)
	Register(ctx context.Context, req RegisterRequest) (*domain.Profile, error)
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	FindUser(ctx context.Context, userID string) (*domain.Profile, error)
	ListUsers(ctx context.Context, excludeID string) ([]domain.Profile, error)
	UpdatePresence(ctx context.Context, userID string, online bool, lastActive time.Time) error
	UpdatePushToken(ctx context.Context, userID, token string) error
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	if container == nil {
		panic("auth: ServiceContainer is nil")
	}
	return &AuthAdapter{
		container: container,
	}
}

func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// VerifyCredential checks the header format locally and then the token.
func (a *AuthAdapter) VerifyCredential(ctx context.Context, credential string) (*domain.Identity, error) {
	token, err := ParseBearer(credential)
	if err != nil {
		return nil, err
	}

	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := callService(ctx, a.container, ServiceValidateToken, &req, &resp); err != nil {
		return nil, err
	}

	if !resp.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, resp.Error)
	}

	return &domain.Identity{
		UserID:      resp.UserID,
		DisplayName: resp.DisplayName,
	}, nil
}

// Register creates an account.
func (a *AuthAdapter) Register(ctx context.Context, req RegisterRequest) (*domain.Profile, error) {
	var resp RegisterResponse
	if err := callService(ctx, a.container, ServiceRegister, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Login exchanges email and password for a token pair.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp LoginResponse
	if err := callService(ctx, a.container, ServiceLogin, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp.Tokens, nil
}

// RefreshTokens exchanges a refresh token for a new pair.
func (a *AuthAdapter) RefreshTokens(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp LoginResponse
	if err := callService(ctx, a.container, ServiceRefreshToken, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp.Tokens, nil
}

// FindUser returns the profile of userID or ErrUserNotFound.
func (a *AuthAdapter) FindUser(ctx context.Context, userID string) (*domain.Profile, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := callService(ctx, a.container, ServiceGetUser, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// ListUsers returns every user except excludeID.
func (a *AuthAdapter) ListUsers(ctx context.Context, excludeID string) ([]domain.Profile, error) {
	req := ListUsersRequest{ExcludeID: excludeID}
	var resp ListUsersResponse
	if err := callService(ctx, a.container, ServiceListUsers, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// UpdatePresence writes the presence fields of a user.
func (a *AuthAdapter) UpdatePresence(ctx context.Context, userID string, online bool, lastActive time.Time) error {
	req := UpdatePresenceRequest{UserID: userID, Online: online, LastActive: lastActive}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceUpdatePresence, &req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// UpdatePushToken stores the push token of a user.
func (a *AuthAdapter) UpdatePushToken(ctx context.Context, userID, token string) error {
	req := UpdatePushTokenRequest{UserID: userID, PushToken: token}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceUpdatePushToken, &req, &resp); err != nil {
		return err
	}
	return resp.Err()
}
