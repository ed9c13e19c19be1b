package message

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/example/dm-chat-server/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// busPayloadLimit is the default maximum payload of the embedded event bus.
const busPayloadLimit = 1 << 20

// wireFetcher calls the find-conversation handler the way the bus would:
// the request and reply are JSON encoded, and replies over the payload
// limit fail.
func wireFetcher(t *testing.T, m *MessageModule, calls *int) pageFetcher {
	t.Helper()
	return func(ctx context.Context, req ConversationRequest) (ConversationResponse, error) {
		*calls++

		raw, err := json.Marshal(req)
		if err != nil {
			return ConversationResponse{}, err
		}
		var decoded ConversationRequest
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return ConversationResponse{}, err
		}

		resp, err := m.handleFindConversation(ctx, decoded, nil)
		if err != nil {
			return ConversationResponse{}, err
		}
		reply, err := json.Marshal(resp)
		if err != nil {
			return ConversationResponse{}, err
		}
		if len(reply) > busPayloadLimit {
			return ConversationResponse{}, errors.New("maximum payload exceeded")
		}

		var out ConversationResponse
		if err := json.Unmarshal(reply, &out); err != nil {
			return ConversationResponse{}, err
		}
		return out, out.Err()
	}
}

func seedConversation(t *testing.T, store *GormStore, n, contentSize int) []*domain.Message {
	t.Helper()
	content := strings.Repeat("x", contentSize)
	msgs := make([]*domain.Message, 0, n)
	for i := 0; i < n; i++ {
		sender, receiver := "alice", "bob"
		if i%2 == 1 {
			sender, receiver = receiver, sender
		}
		msgs = append(msgs, &domain.Message{
			ID:         uuid.New().String(),
			SenderID:   sender,
			ReceiverID: receiver,
			Content:    content,
			Type:       domain.MessageTypeText,
			Timestamp:  baseTime.Add(time.Duration(i) * time.Second),
		})
	}
	if err := store.db.CreateInBatches(msgs, 500).Error; err != nil {
		t.Fatalf("failed to seed conversation: %v", err)
	}
	return msgs
}

func TestFindConversation_HistoryLargerThanBusPayload(t *testing.T) {
	store := setupTestStore(t)
	m := NewModuleWithStore(store, &mockLogger{})
	ctx := context.Background()

	// About 3 MB of JSON in total.
	seeded := seedConversation(t, store, 3000, 800)

	calls := 0
	msgs, err := collectConversation(ctx, "bob", "alice", wireFetcher(t, m, &calls))
	if err != nil {
		t.Fatalf("collectConversation() error = %v", err)
	}
	if len(msgs) != len(seeded) {
		t.Fatalf("collected %d messages, want %d", len(msgs), len(seeded))
	}
	for i := range seeded {
		if msgs[i].ID != seeded[i].ID {
			t.Fatalf("msgs[%d] = %s, want %s", i, msgs[i].ID, seeded[i].ID)
		}
	}
	if calls < 2 {
		t.Errorf("conversation fetched in %d call(s), want several pages", calls)
	}
}

func TestFindConversation_ReplyBudgetTrimsPage(t *testing.T) {
	store := setupTestStore(t)
	m := NewModuleWithStore(store, &mockLogger{})
	ctx := context.Background()

	// Each message is ~20 KB, so the byte budget ends the page before the row limit does.
	seedConversation(t, store, 60, 20<<10)

	resp, err := m.handleFindConversation(ctx, ConversationRequest{UserA: "alice", UserB: "bob"}, nil)
	if err != nil {
		t.Fatalf("handleFindConversation() error = %v", err)
	}
	if len(resp.Messages) == 0 || len(resp.Messages) >= 60 {
		t.Fatalf("page has %d messages, want a trimmed page", len(resp.Messages))
	}
	if resp.Next == nil {
		t.Fatal("Next = nil on a trimmed page")
	}
	last := resp.Messages[len(resp.Messages)-1]
	if resp.Next.ID != last.ID {
		t.Errorf("Next.ID = %s, want %s", resp.Next.ID, last.ID)
	}
	reply, _ := json.Marshal(resp)
	if len(reply) > maxConversationReplyBytes+(32<<10) {
		t.Errorf("reply is %d bytes, budget %d", len(reply), maxConversationReplyBytes)
	}
}

func TestFindConversation_LastPageHasNoCursor(t *testing.T) {
	store := setupTestStore(t)
	m := NewModuleWithStore(store, &mockLogger{})
	ctx := context.Background()

	seedConversation(t, store, conversationPageSize, 10)

	// Exactly one full page, with nothing after it.
	resp, err := m.handleFindConversation(ctx, ConversationRequest{UserA: "alice", UserB: "bob"}, nil)
	if err != nil {
		t.Fatalf("handleFindConversation() error = %v", err)
	}
	if len(resp.Messages) != conversationPageSize {
		t.Errorf("page has %d messages, want %d", len(resp.Messages), conversationPageSize)
	}
	if resp.Next != nil {
		t.Errorf("Next = %+v, want nil", resp.Next)
	}

	empty, err := m.handleFindConversation(ctx, ConversationRequest{UserA: "alice", UserB: "carol", Limit: 5}, nil)
	if err != nil {
		t.Fatalf("handleFindConversation(empty) error = %v", err)
	}
	if len(empty.Messages) != 0 || empty.Next != nil {
		t.Errorf("empty conversation = %+v", empty)
	}
}
