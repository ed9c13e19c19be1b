package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/dm-chat-server/events"
	"github.com/example/dm-chat-server/modules/auth"
	"github.com/example/dm-chat-server/modules/broadcast"
	"github.com/example/dm-chat-server/modules/message"
	"github.com/example/dm-chat-server/modules/presence"
	"github.com/example/dm-chat-server/modules/session"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Options configures the HTTP server.
type Options struct {
	Port               int
	CORSAllowedOrigins string
	SendBuffer         int
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	opts           Options
	app            *fiber.App
	authAdapter    auth.AuthPort
	messageAdapter message.MessagePort
	hub            *broadcast.Hub
	tracker        *presence.Tracker
	eventBus       mono.EventBus
	sessions       *session.Manager
	logger         types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.EventBusAwareModule = (*APIModule)(nil)
var _ mono.EventEmitterModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(opts Options, logger types.Logger) *APIModule {
	if opts.Port == 0 {
		opts.Port = 3000
	}
	if opts.CORSAllowedOrigins == "" {
		opts.CORSAllowedOrigins = "*"
	}
	return &APIModule{
		opts:   opts,
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "message"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	case "message":
		m.messageAdapter = message.NewMessageAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *APIModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events published by WebSocket sessions.
func (m *APIModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.NotificationRequestedV1.ToBase(),
	}
}

// SetHub sets the broadcast hub (called from main.go).
func (m *APIModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// SetPresence sets the presence tracker (called from main.go).
func (m *APIModule) SetPresence(tracker *presence.Tracker) {
	m.tracker = tracker
}

// Start builds the session manager and starts the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.messageAdapter == nil {
		return fmt.Errorf("message dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}
	if m.tracker == nil {
		return fmt.Errorf("presence tracker dependency not set")
	}

	deps := session.Dependencies{
		Verifier: m.authAdapter,
		Users:    m.authAdapter,
		Presence: m.tracker,
		Messages: m.messageAdapter,
		Router:   m.hub,
	}
	if m.eventBus != nil {
		deps.Events = session.NewBusPublisher(m.eventBus)
	}
	m.sessions = session.NewManager(deps, m.logger, session.WithSendBuffer(m.opts.SendBuffer))

	m.app = m.newApp()

	addr := ":" + strconv.Itoa(m.opts.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	// Catch immediate bind failures.
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", addr)
	return nil
}

// newApp builds the Fiber app with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(m.loggerMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.opts.CORSAllowedOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	handlers := NewHandlers(m.authAdapter, m.tracker, m.hub, m.logger)
	ws := &wsHandler{sessions: m.sessions, logger: m.logger}
	setupRoutes(app, handlers, ws, m.authAdapter)
	return app
}

// setupRoutes configures all HTTP and WebSocket routes.
func setupRoutes(app *fiber.App, h *Handlers, ws *wsHandler, authAdapter auth.AuthPort) {
	app.Get("/health", h.HealthCheck)

	app.Use("/ws", ws.upgrade)
	app.Get("/ws", websocket.New(ws.handle))

	v1 := app.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)
	authRoutes.Post("/refresh", h.Refresh)

	users := v1.Group("/users", AuthMiddleware(authAdapter))
	users.Get("/", h.ListUsers)
	users.Put("/me/push-token", h.UpdatePushToken)
	users.Get("/:id", h.GetUser)
	users.Get("/:id/presence", h.GetPresence)
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server...")
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port": m.opts.Port,
	}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func (m *APIModule) loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		m.logger.Info("HTTP request", "method", c.Method(), "path", c.Path(), "status", c.Response().StatusCode())
		return err
	}
}
