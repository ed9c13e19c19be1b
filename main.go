package main

import (
	"context"
	"log"
	"os"

	"github.com/example/dm-chat-server/config"
	"github.com/example/dm-chat-server/modules/api"
	"github.com/example/dm-chat-server/modules/auth"
	"github.com/example/dm-chat-server/modules/broadcast"
	"github.com/example/dm-chat-server/modules/message"
	"github.com/example/dm-chat-server/modules/notification"
	"github.com/example/dm-chat-server/modules/presence"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== DM Chat Server - Fiber + WebSocket + EventBus ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	authModule := auth.NewModule(auth.Options{
		DBPath: cfg.DBPath,
		JWT: auth.JWTConfig{
			SecretKey:            cfg.JWTSecretKey,
			AccessTokenDuration:  cfg.AccessTokenTTL,
			RefreshTokenDuration: cfg.RefreshTokenTTL,
			Issuer:               cfg.JWTIssuer,
		},
	}, logger)
	messageModule := message.NewModule(message.Options{
		DBPath:      cfg.MessagesDBPath,
		DatabaseURL: cfg.DatabaseURL,
	}, logger)
	presenceModule := presence.NewModule(presence.Options{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		TTL:           cfg.PresenceTTL,
	}, logger)
	broadcastModule := broadcast.NewModule(logger)
	notificationModule := notification.NewModule(logger)
	apiModule := api.NewModule(api.Options{
		Port:               cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SendBuffer:         cfg.SendBuffer,
	}, logger)

	// The hub and tracker hold live connection state and are not exposed
	// via ServiceContainer, so they are injected directly.
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetPresence(presenceModule.Tracker())

	// Register modules with the framework.
	// - auth: user directory and token verification (ServiceProviderModule)
	// - message: message persistence (ServiceProviderModule)
	// - presence: online/offline tracking, optional Redis mirror (depends on auth)
	// - broadcast: connection registry and room fan-out
	// - notification: push requests for receivers outside the room (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server (depends on auth, message)
	app.Register(authModule)
	app.Register(messageModule)
	app.Register(presenceModule)
	app.Register(broadcastModule)
	app.Register(notificationModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Storage:")
	log.Printf("  - Users: SQLite (%s)", cfg.DBPath)
	log.Printf("  - Messages: %s", cfg.MessageBackend())
	if cfg.RedisAddr != "" {
		log.Printf("  - Presence mirror: Redis (%s)", cfg.RedisAddr)
	}
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.Port)
	log.Println("  GET    /health                      - Health check")
	log.Println("  POST   /api/v1/auth/register        - Create an account")
	log.Println("  POST   /api/v1/auth/login           - Issue tokens")
	log.Println("  POST   /api/v1/auth/refresh         - Refresh tokens")
	log.Println("  GET    /api/v1/users                - List other users (auth)")
	log.Println("  GET    /api/v1/users/:id            - Get a user (auth)")
	log.Println("  GET    /api/v1/users/:id/presence   - Get presence (auth)")
	log.Println("  PUT    /api/v1/users/me/push-token  - Set push token (auth)")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws):", cfg.Port)
	log.Println("  Header: Authorization: Bearer <access_token>")
	log.Println("  Inbound: join_room, send_message, update_read_status, delete_message, update_message")
	log.Println("  Outbound: chat_history, receive_message, trigger_local_notification,")
	log.Println("            message_read, message_deleted, message_updated, chat_error, auth_error")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
