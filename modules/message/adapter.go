package message

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/dm-chat-server/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// MessagePort is the message store as seen from other modules.
type MessagePort interface {
	Insert(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	FindByParticipants(ctx context.Context, a, b string) ([]domain.Message, error)
	Save(ctx context.Context, msg *domain.Message) error
	DeleteByID(ctx context.Context, id string) error
}

// MessageAdapter implements MessagePort using the service container.
type MessageAdapter struct {
	container mono.ServiceContainer
}

var _ MessagePort = (*MessageAdapter)(nil)

// NewMessageAdapter creates a new MessageAdapter.
func NewMessageAdapter(container mono.ServiceContainer) *MessageAdapter {
	if container == nil {
		panic("message: ServiceContainer is nil")
	}
	return &MessageAdapter{container: container}
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

// Insert stores a new message.
func (a *MessageAdapter) Insert(ctx context.Context, msg *domain.Message) error {
	req := MessageRequest{Message: *msg}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceInsert, &req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// FindByID finds a message by ID.
func (a *MessageAdapter) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	req := MessageIDRequest{MessageID: id}
	var resp MessageResponse
	if err := callService(ctx, a.container, ServiceFind, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.Message == nil {
		return nil, domain.ErrMessageNotFound
	}
	return resp.Message, nil
}

// FindByParticipants returns the whole conversation between a and b,
// fetched page by page so that no single reply outgrows the bus.
func (a *MessageAdapter) FindByParticipants(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	return collectConversation(ctx, userA, userB, func(ctx context.Context, req ConversationRequest) (ConversationResponse, error) {
		var resp ConversationResponse
		if err := callService(ctx, a.container, ServiceFindConversation, &req, &resp); err != nil {
			return resp, err
		}
		return resp, resp.Err()
	})
}

// pageFetcher performs one find-conversation call.
type pageFetcher func(ctx context.Context, req ConversationRequest) (ConversationResponse, error)

// collectConversation follows page cursors until the conversation is exhausted.
func collectConversation(ctx context.Context, userA, userB string, fetch pageFetcher) ([]domain.Message, error) {
	req := ConversationRequest{UserA: userA, UserB: userB}
	msgs := []domain.Message{}
	for {
		resp, err := fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, resp.Messages...)
		if resp.Next == nil || len(resp.Messages) == 0 {
			return msgs, nil
		}
		req.After = resp.Next
	}
}

// Save upserts a message.
func (a *MessageAdapter) Save(ctx context.Context, msg *domain.Message) error {
	req := MessageRequest{Message: *msg}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceSave, &req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// DeleteByID removes a message.
func (a *MessageAdapter) DeleteByID(ctx context.Context, id string) error {
	req := MessageIDRequest{MessageID: id}
	var resp AckResponse
	if err := callService(ctx, a.container, ServiceDelete, &req, &resp); err != nil {
		return err
	}
	return resp.Err()
}
