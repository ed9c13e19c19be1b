// Package notification turns NotificationRequested events into push requests
// addressed to the receiver's registered device token.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/dm-chat-server/domain/chat"
	"github.com/example/dm-chat-server/domain/user"
	"github.com/example/dm-chat-server/events"
	"github.com/example/dm-chat-server/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// maxPending bounds the in-memory queue of push requests.
const maxPending = 1000

// PushRequest is a push notification ready for an external dispatcher.
type PushRequest struct {
	MessageID  string    `json:"message_id"`
	ReceiverID string    `json:"receiver_id"`
	PushToken  string    `json:"push_token"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// UserDirectory resolves push tokens.
type UserDirectory interface {
	FindUser(ctx context.Context, userID string) (*user.Profile, error)
}

// NotificationModule consumes NotificationRequested events.
type NotificationModule struct {
	users   UserDirectory
	pending []PushRequest
	skipped int
	mu      sync.RWMutex
	logger  types.Logger
}

var _ mono.Module = (*NotificationModule)(nil)
var _ mono.DependentModule = (*NotificationModule)(nil)
var _ mono.EventConsumerModule = (*NotificationModule)(nil)
var _ mono.HealthCheckableModule = (*NotificationModule)(nil)

// NewModule creates a new NotificationModule.
func NewModule(logger types.Logger) *NotificationModule {
	return &NotificationModule{
		pending: make([]PushRequest, 0),
		logger:  logger,
	}
}

func (m *NotificationModule) Name() string {
	return "notification"
}

func (m *NotificationModule) Dependencies() []string {
	return []string{"auth"}
}

func (m *NotificationModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.users = auth.NewAuthAdapter(container)
	}
}

func (m *NotificationModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.NotificationRequestedV1, m.handleNotificationRequested, m); err != nil {
		return fmt.Errorf("failed to register NotificationRequested consumer: %w", err)
	}

	m.logger.Info("Registered event consumers: NotificationRequested")
	return nil
}

func (m *NotificationModule) handleNotificationRequested(ctx context.Context, event events.NotificationRequestedEvent, _ *mono.Msg) error {
	if m.users == nil {
		return fmt.Errorf("notification: user directory not configured")
	}

	profile, err := m.users.FindUser(ctx, event.ReceiverID)
	if err != nil {
		return fmt.Errorf("failed to resolve receiver %s: %w", event.ReceiverID, err)
	}
	if profile.PushToken == "" {
		m.mu.Lock()
		m.skipped++
		m.mu.Unlock()
		m.logger.Debug("Receiver has no push token", "receiver_id", event.ReceiverID, "message_id", event.MessageID)
		return nil
	}

	body := event.MessageContent
	if chat.MessageType(event.MessageType) == chat.MessageTypeImage {
		body = "Sent you an image"
	}
	req := PushRequest{
		MessageID:  event.MessageID,
		ReceiverID: event.ReceiverID,
		PushToken:  profile.PushToken,
		Title:      event.SenderName,
		Body:       body,
		Timestamp:  event.Timestamp,
	}

	m.mu.Lock()
	m.pending = append(m.pending, req)
	if len(m.pending) > maxPending {
		m.pending = m.pending[len(m.pending)-maxPending:]
	}
	m.mu.Unlock()

	m.logger.Info("Push notification requested",
		"receiver_id", req.ReceiverID, "message_id", req.MessageID, "sender", req.Title)
	return nil
}

// Pending returns a copy of the queued push requests.
func (m *NotificationModule) Pending() []PushRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]PushRequest, len(m.pending))
	copy(result, m.pending)
	return result
}

func (m *NotificationModule) Start(_ context.Context) error {
	m.logger.Info("Notification module started - listening for notification requests")
	return nil
}

func (m *NotificationModule) Stop(_ context.Context) error {
	m.logger.Info("Notification module stopped", "pending", len(m.Pending()))
	return nil
}

func (m *NotificationModule) Health(_ context.Context) mono.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mono.HealthStatus{
		Healthy: m.users != nil,
		Message: "operational",
		Details: map[string]any{
			"pending": len(m.pending),
			"skipped": m.skipped,
		},
	}
}
