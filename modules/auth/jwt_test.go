package auth

import (
	"errors"
	"testing"
	"time"
)

func testJWTConfig() JWTConfig {
	return JWTConfig{
		SecretKey:            "test-secret-key",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		Issuer:               "test-issuer",
	}
}

func TestJWTManager_GenerateAndValidateAccessToken(t *testing.T) {
	config := testJWTConfig()
	manager := NewJWTManager(config)

	token, err := manager.GenerateAccessToken("user-123", "Alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}

	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, "user-123")
	}
	if claims.Name != "Alice" {
		t.Errorf("claims.Name = %v, want %v", claims.Name, "Alice")
	}
	if claims.TokenType != tokenTypeAccess {
		t.Errorf("claims.TokenType = %v, want %v", claims.TokenType, tokenTypeAccess)
	}
	if claims.Issuer != config.Issuer {
		t.Errorf("claims.Issuer = %v, want %v", claims.Issuer, config.Issuer)
	}
}

func TestJWTManager_TokenTypeMismatch(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	refresh, err := manager.GenerateRefreshToken("user-1", "Bob")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if _, err := manager.ValidateAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateAccessToken(refresh) error = %v, want %v", err, ErrInvalidToken)
	}

	access, err := manager.GenerateAccessToken("user-1", "Bob")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := manager.ValidateRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateRefreshToken(access) error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())
	issued := time.Now().Add(-time.Hour)
	manager.now = func() time.Time { return issued }

	token, err := manager.GenerateAccessToken("user-1", "Carol")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	manager.now = time.Now
	if _, err := manager.ValidateAccessToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrExpiredToken)
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	signer := NewJWTManager(testJWTConfig())
	other := testJWTConfig()
	other.SecretKey = "another-secret"
	verifier := NewJWTManager(other)

	token, err := signer.GenerateAccessToken("user-1", "Dave")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := verifier.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestJWTManager_Garbage(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(%q) error = %v, want %v", token, err, ErrInvalidToken)
		}
	}
}

func TestJWTManager_AccessTokenDuration(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())
	if got := manager.AccessTokenDuration(); got != 900 {
		t.Errorf("AccessTokenDuration() = %d, want 900", got)
	}
}
