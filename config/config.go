// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings read at process start.
type Config struct {
	Port               int
	DBPath             string
	MessagesDBPath     string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	PresenceTTL        time.Duration
	JWTSecretKey       string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	CORSAllowedOrigins string
	SendBuffer         int
	ShutdownTimeout    time.Duration
}

// Load reads an optional .env file and then the environment.
// Missing variables fall back to development defaults.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		Port:               getEnvInt("PORT", 3000),
		DBPath:             getEnv("DB_PATH", "dmchat.db"),
		MessagesDBPath:     getEnv("MESSAGES_DB_PATH", "messages.db"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		PresenceTTL:        getEnvDuration("PRESENCE_TTL", 24*time.Hour),
		JWTSecretKey:       getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
		JWTIssuer:          getEnv("JWT_ISSUER", "dm-chat-server"),
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		SendBuffer:         getEnvInt("SEND_BUFFER", 256),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the server unusable.
func (c *Config) Validate() error {
	var errs []string
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT out of range: %d", c.Port))
	}
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		errs = append(errs, "JWT_SECRET_KEY must not be empty")
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, "ACCESS_TOKEN_TTL must be positive")
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, "SEND_BUFFER must be positive")
	}
	if c.DBPath == "" {
		errs = append(errs, "DB_PATH is required")
	}
	if c.DatabaseURL == "" && c.MessagesDBPath == "" {
		errs = append(errs, "one of MESSAGES_DB_PATH or DATABASE_URL is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MessageBackend names the storage used for messages.
func (c *Config) MessageBackend() string {
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
