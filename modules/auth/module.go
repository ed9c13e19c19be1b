package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/example/dm-chat-server/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options configures the auth module.
type Options struct {
	DBPath     string
	JWT        JWTConfig
	BcryptCost int
}

// AuthModule owns the user directory and issues and verifies bearer tokens.
type AuthModule struct {
	opts    Options
	db      *gorm.DB
	service *AuthService
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*AuthModule)(nil)
	_ mono.ServiceProviderModule = (*AuthModule)(nil)
	_ mono.HealthCheckableModule = (*AuthModule)(nil)
)

// NewModule creates a new AuthModule.
func NewModule(opts Options, logger types.Logger) *AuthModule {
	if opts.DBPath == "" {
		opts.DBPath = "dmchat.db"
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = DefaultBcryptCost
	}
	return &AuthModule{
		opts:   opts,
		logger: logger,
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start opens the user database.
func (m *AuthModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.opts.DBPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewAuthService(
		NewUserRepository(db),
		NewPasswordHasherWithCost(m.opts.BcryptCost),
		NewJWTManager(m.opts.JWT),
	)

	m.logger.Info("Auth module started", "database", m.opts.DBPath, "issuer", m.opts.JWT.Issuer)
	return nil
}

// Stop closes the database.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.opts.DBPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRegister, json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRegister, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLogin, json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLogin, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRefreshToken, json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRefreshToken, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceValidateToken, json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceValidateToken, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListUsers, json.Unmarshal, json.Marshal, m.handleListUsers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListUsers, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdatePresence, json.Unmarshal, json.Marshal, m.handleUpdatePresence,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdatePresence, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdatePushToken, json.Unmarshal, json.Marshal, m.handleUpdatePushToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdatePushToken, err)
	}

	m.logger.Info("Registered auth services",
		"services", []string{
			ServiceRegister, ServiceLogin, ServiceRefreshToken, ServiceValidateToken,
			ServiceGetUser, ServiceListUsers, ServiceUpdatePresence, ServiceUpdatePushToken,
		})
	return nil
}

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	user, err := m.service.Register(ctx, req)
	if err != nil {
		st, err := statusFor(err)
		return RegisterResponse{Status: st}, err
	}
	m.logger.Info("User registered", "user_id", user.ID)
	return RegisterResponse{User: user.ToProfile()}, nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	tokens, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		st, err := statusFor(err)
		return LoginResponse{Status: st}, err
	}
	return LoginResponse{Tokens: *tokens}, nil
}

func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (LoginResponse, error) {
	tokens, err := m.service.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		st, err := statusFor(err)
		return LoginResponse{Status: st}, err
	}
	return LoginResponse{Tokens: *tokens}, nil
}

// handleValidateToken reports validation failures in the reply, not as errors.
func (m *AuthModule) handleValidateToken(_ context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	identity, err := m.service.VerifyToken(req.Token)
	if err != nil {
		errMsg := "invalid token"
		if errors.Is(err, ErrExpiredToken) {
			errMsg = "token expired"
		}
		return ValidateTokenResponse{Valid: false, Error: errMsg}, nil
	}

	return ValidateTokenResponse{
		Valid:       true,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
	}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		st, err := statusFor(err)
		return GetUserResponse{Status: st}, err
	}
	return GetUserResponse{User: user.ToProfile()}, nil
}

func (m *AuthModule) handleListUsers(ctx context.Context, req ListUsersRequest, _ *mono.Msg) (ListUsersResponse, error) {
	users, err := m.service.ListUsers(ctx, req.ExcludeID)
	if err != nil {
		return ListUsersResponse{}, err
	}
	profiles := make([]domain.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].ToProfile())
	}
	return ListUsersResponse{Users: profiles}, nil
}

func (m *AuthModule) handleUpdatePresence(ctx context.Context, req UpdatePresenceRequest, _ *mono.Msg) (AckResponse, error) {
	if err := m.service.UpdatePresence(ctx, req.UserID, req.Online, req.LastActive); err != nil {
		st, err := statusFor(err)
		return AckResponse{Status: st}, err
	}
	return AckResponse{Success: true}, nil
}

func (m *AuthModule) handleUpdatePushToken(ctx context.Context, req UpdatePushTokenRequest, _ *mono.Msg) (AckResponse, error) {
	if err := m.service.UpdatePushToken(ctx, req.UserID, req.PushToken); err != nil {
		st, err := statusFor(err)
		return AckResponse{Status: st}, err
	}
	return AckResponse{Success: true}, nil
}

// Service exposes the underlying service for in-process callers.
func (m *AuthModule) Service() *AuthService {
	return m.service
}
