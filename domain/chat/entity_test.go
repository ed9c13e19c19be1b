package chat

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validMessage() Message {
	return Message{
		ID:         "m1",
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    "hi",
		Type:       MessageTypeText,
		Timestamp:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Message)
		wantErr error
	}{
		{name: "valid text", mutate: func(m *Message) {}},
		{name: "valid image", mutate: func(m *Message) { m.Type = MessageTypeImage; m.Content = "uploads/a.png" }},
		{name: "missing sender", mutate: func(m *Message) { m.SenderID = "" }, wantErr: ErrInvalidMessage},
		{name: "missing receiver", mutate: func(m *Message) { m.ReceiverID = "" }, wantErr: ErrInvalidMessage},
		{name: "self message", mutate: func(m *Message) { m.ReceiverID = m.SenderID }, wantErr: ErrInvalidMessage},
		{name: "blank content", mutate: func(m *Message) { m.Content = "   " }, wantErr: ErrInvalidMessage},
		{name: "unknown type", mutate: func(m *Message) { m.Type = "video" }, wantErr: ErrInvalidMessage},
		{name: "missing timestamp", mutate: func(m *Message) { m.Timestamp = time.Time{} }, wantErr: ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMessage()
			tt.mutate(&m)
			if err := m.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessage_MarkRead(t *testing.T) {
	m := validMessage()
	first := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	if !m.MarkRead(first) {
		t.Fatal("MarkRead() = false on unread message")
	}
	if !m.IsRead() {
		t.Fatal("IsRead() = false after MarkRead")
	}
	if m.MarkRead(first.Add(time.Hour)) {
		t.Error("MarkRead() = true on already read message")
	}
	if !m.ReadAt.Equal(first) {
		t.Errorf("ReadAt = %v, want %v", m.ReadAt, first)
	}
}

func TestMessage_IsParticipant(t *testing.T) {
	m := validMessage()
	if !m.IsParticipant("alice") || !m.IsParticipant("bob") {
		t.Error("IsParticipant() = false for sender or receiver")
	}
	if m.IsParticipant("carol") {
		t.Error("IsParticipant(carol) = true")
	}
}

func TestFormat_NullReadStatus(t *testing.T) {
	m := validMessage()
	out, err := json.Marshal(Format(&m, Participant{ID: "alice", Name: "Alice"}, Participant{ID: "bob", Name: "Bob"}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	body := string(out)
	for _, want := range []string{`"readStatus":null`, `"senderId":"alice"`, `"timestamp":"2024-01-01T10:00:00Z"`, `"name":"Bob"`} {
		if !strings.Contains(body, want) {
			t.Errorf("formatted message %s missing %s", body, want)
		}
	}
}
