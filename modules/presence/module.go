package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/example/dm-chat-server/events"
	"github.com/example/dm-chat-server/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Options configures the presence module.
type Options struct {
	RedisAddr     string
	RedisPassword string
	Prefix        string
	TTL           time.Duration
}

// PresenceModule owns the Tracker, writes presence through the auth module
// and optionally mirrors it to Redis.
type PresenceModule struct {
	opts     Options
	tracker  *Tracker
	mirror   *RedisMirror
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*PresenceModule)(nil)
	_ mono.DependentModule       = (*PresenceModule)(nil)
	_ mono.EventBusAwareModule   = (*PresenceModule)(nil)
	_ mono.EventEmitterModule    = (*PresenceModule)(nil)
	_ mono.HealthCheckableModule = (*PresenceModule)(nil)
)

// NewModule creates a new PresenceModule. The tracker exists from here on so
// that it can be handed to other modules before Start.
func NewModule(opts Options, logger types.Logger) *PresenceModule {
	if opts.Prefix == "" {
		opts.Prefix = "presence:"
	}
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	m := &PresenceModule{
		opts:   opts,
		logger: logger,
	}
	m.tracker = NewTracker(nil, logger, WithListener(m.publishChange))
	return m
}

// Name returns the module name.
func (m *PresenceModule) Name() string {
	return "presence"
}

// Dependencies returns the list of module dependencies.
func (m *PresenceModule) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *PresenceModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.tracker.SetWriter(auth.NewAuthAdapter(container))
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *PresenceModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *PresenceModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PresenceChangedV1.ToBase(),
	}
}

// Start connects the Redis mirror when configured.
func (m *PresenceModule) Start(ctx context.Context) error {
	if m.opts.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         m.opts.RedisAddr,
			Password:     m.opts.RedisPassword,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.mirror = NewRedisMirror(client, m.opts.Prefix, m.opts.TTL)
		m.tracker.SetMirror(m.mirror)
	}

	m.logger.Info("Presence module started", "redis", m.opts.RedisAddr != "")
	return nil
}

// Stop closes the mirror.
func (m *PresenceModule) Stop(_ context.Context) error {
	if m.mirror != nil {
		m.tracker.SetMirror(nil)
		if err := m.mirror.Close(); err != nil {
			m.logger.Warn("Failed to close Redis connection", "error", err)
		}
	}
	m.logger.Info("Presence module stopped", "online_users", m.tracker.OnlineCount())
	return nil
}

// Health reports the mirror connection and online count.
func (m *PresenceModule) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{
		"online_users": m.tracker.OnlineCount(),
		"redis":        m.mirror != nil,
	}
	if m.mirror != nil {
		if err := m.mirror.Ping(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
				Details: details,
			}
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// Tracker returns the presence tracker for the session layer.
func (m *PresenceModule) Tracker() *Tracker {
	return m.tracker
}

func (m *PresenceModule) publishChange(s Snapshot) {
	if m.eventBus == nil {
		return
	}
	event := events.PresenceChangedEvent{
		UserID:     s.UserID,
		Online:     s.Online,
		LastActive: s.LastActive,
	}
	if err := events.PresenceChangedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PresenceChanged event", "user_id", s.UserID, "error", err)
	}
}
