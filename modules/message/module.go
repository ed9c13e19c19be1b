package message

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/dm-chat-server/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

const (
	// conversationPageSize bounds the rows read per find-conversation call.
	conversationPageSize = 200
	// maxConversationReplyBytes keeps a find-conversation reply well below
	// the event bus payload limit (1 MB by default).
	maxConversationReplyBytes = 512 << 10
)

// Options selects the storage backend. DatabaseURL wins over DBPath.
type Options struct {
	DBPath      string
	DatabaseURL string
}

// MessageModule owns message persistence.
type MessageModule struct {
	opts   Options
	store  Store
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*MessageModule)(nil)
	_ mono.ServiceProviderModule = (*MessageModule)(nil)
	_ mono.HealthCheckableModule = (*MessageModule)(nil)
)

// NewModule creates a new MessageModule.
func NewModule(opts Options, logger types.Logger) *MessageModule {
	if opts.DBPath == "" {
		opts.DBPath = "messages.db"
	}
	return &MessageModule{
		opts:   opts,
		logger: logger,
	}
}

// NewModuleWithStore creates a MessageModule over an already opened store.
func NewModuleWithStore(store Store, logger types.Logger) *MessageModule {
	return &MessageModule{
		store:  store,
		logger: logger,
	}
}

// Name returns the module name.
func (m *MessageModule) Name() string {
	return "message"
}

// Start opens the configured backend and applies the schema.
func (m *MessageModule) Start(ctx context.Context) error {
	if m.store == nil {
		store, err := m.openStore(ctx)
		if err != nil {
			return err
		}
		m.store = store
	}

	if err := m.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate message store: %w", err)
	}

	m.logger.Info("Message module started", "driver", m.store.Driver())
	return nil
}

func (m *MessageModule) openStore(ctx context.Context) (Store, error) {
	if m.opts.DatabaseURL != "" {
		store, err := OpenPgStore(ctx, m.opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres message store: %w", err)
		}
		return store, nil
	}
	store, err := OpenGormStore(m.opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite message store: %w", err)
	}
	return store, nil
}

// Stop closes the store.
func (m *MessageModule) Stop(_ context.Context) error {
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.logger.Warn("Failed to close message store", "error", err)
		}
	}
	m.logger.Info("Message module stopped")
	return nil
}

// Health pings the store.
func (m *MessageModule) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "message store not initialized",
		}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("message store ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.store.Driver(),
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *MessageModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceInsert, json.Unmarshal, json.Marshal, m.handleInsert,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceInsert, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceFind, json.Unmarshal, json.Marshal, m.handleFind,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceFind, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceFindConversation, json.Unmarshal, json.Marshal, m.handleFindConversation,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceFindConversation, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSave, json.Unmarshal, json.Marshal, m.handleSave,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSave, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDelete, json.Unmarshal, json.Marshal, m.handleDelete,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDelete, err)
	}

	m.logger.Info("Registered message services",
		"services", []string{ServiceInsert, ServiceFind, ServiceFindConversation, ServiceSave, ServiceDelete})
	return nil
}

func (m *MessageModule) handleInsert(ctx context.Context, req MessageRequest, _ *mono.Msg) (AckResponse, error) {
	if err := req.Message.Validate(); err != nil {
		st, err := statusFor(err)
		return AckResponse{Status: st}, err
	}
	if err := m.store.Insert(ctx, &req.Message); err != nil {
		st, err := statusFor(err)
		return AckResponse{Status: st}, err
	}
	return AckResponse{Success: true}, nil
}

func (m *MessageModule) handleFind(ctx context.Context, req MessageIDRequest, _ *mono.Msg) (MessageResponse, error) {
	msg, err := m.store.FindByID(ctx, req.MessageID)
	if err != nil {
		st, err := statusFor(err)
		return MessageResponse{Status: st}, err
	}
	return MessageResponse{Message: msg}, nil
}

func (m *MessageModule) handleFindConversation(ctx context.Context, req ConversationRequest, _ *mono.Msg) (ConversationResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > conversationPageSize {
		limit = conversationPageSize
	}

	// One extra row tells whether another page follows.
	msgs, err := m.store.FindConversationPage(ctx, req.UserA, req.UserB, req.After, limit+1)
	if err != nil {
		return ConversationResponse{}, err
	}
	more := len(msgs) > limit
	if more {
		msgs = msgs[:limit]
	}
	msgs, trimmed := fitReply(msgs, maxConversationReplyBytes)

	resp := ConversationResponse{Messages: msgs}
	if (more || trimmed) && len(msgs) > 0 {
		resp.Next = CursorOf(&msgs[len(msgs)-1])
	}
	return resp, nil
}

// fitReply keeps the longest prefix whose encoding fits in budget. The first
// message is always kept; anything larger could not have been inserted
// through the bus either.
func fitReply(msgs []domain.Message, budget int) ([]domain.Message, bool) {
	size := 0
	for i := range msgs {
		b, _ := json.Marshal(&msgs[i])
		size += len(b) + 1
		if size > budget && i > 0 {
			return msgs[:i], true
		}
	}
	return msgs, false
}

func (m *MessageModule) handleSave(ctx context.Context, req MessageRequest, _ *mono.Msg) (AckResponse, error) {
	if err := m.store.Save(ctx, &req.Message); err != nil {
		st, err := statusFor(err)
		return AckResponse{Status: st}, err
	}
	return AckResponse{Success: true}, nil
}

func (m *MessageModule) handleDelete(ctx context.Context, req MessageIDRequest, _ *mono.Msg) (AckResponse, error) {
	if err := m.store.DeleteByID(ctx, req.MessageID); err != nil {
		st, err := statusFor(err)
		return AckResponse{Status: st}, err
	}
	return AckResponse{Success: true}, nil
}
