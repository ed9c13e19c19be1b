package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/example/dm-chat-server/domain/chat"
)

// Inbound event names.
const (
	EventJoinRoom         = "join_room"
	EventSendMessage      = "send_message"
	EventUpdateReadStatus = "update_message_read_status"
	EventDeleteMessage    = "delete_message"
	EventUpdateMessage    = "update_message"
)

// Outbound event names.
const (
	EventChatHistory       = "chat_history"
	EventReceiveMessage    = "receive_message"
	EventLocalNotification = "trigger_local_notification"
	EventMessageRead       = "message_read"
	EventMessageDeleted    = "message_deleted"
	EventMessageUpdated    = "message_updated"
	EventChatError         = "chat_error"
	EventAuthError         = "auth_error"
)

// envelope is an inbound frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SendMessagePayload is the data of send_message.
type SendMessagePayload struct {
	ReceiverID string           `json:"receiverId"`
	Content    string           `json:"content"`
	Timestamp  Timestamp        `json:"timestamp"`
	Type       chat.MessageType `json:"type"`
}

// UpdateMessagePayload is the data of update_message.
type UpdateMessagePayload struct {
	MessageID  string `json:"messageId"`
	NewContent string `json:"newContent"`
}

// NotificationPayload is the data of trigger_local_notification.
type NotificationPayload struct {
	SenderID       string           `json:"senderId"`
	SenderName     string           `json:"senderName"`
	MessageContent string           `json:"messageContent"`
	MessageType    chat.MessageType `json:"messageType"`
	ReceiverID     string           `json:"receiverId"`
}

// MessageReadPayload is the data of message_read.
type MessageReadPayload struct {
	MessageID  string    `json:"messageId"`
	ReadStatus time.Time `json:"readStatus"`
}

// MessageDeletedPayload is the data of message_deleted.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// MessageUpdatedPayload is the data of message_updated.
type MessageUpdatedPayload struct {
	MessageID  string    `json:"messageId"`
	NewContent string    `json:"newContent"`
	Timestamp  time.Time `json:"timestamp"`
}

// Epoch milliseconds must fall within the years 1 to 9999, the range both
// message stores and RFC 3339 can represent.
var (
	minTimestampMillis = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxTimestampMillis = time.Date(9999, time.December, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli()
)

// Timestamp accepts either an RFC 3339 string or epoch milliseconds.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return fmt.Errorf("%w: timestamp %s: %v", chat.ErrInvalidMessage, data, err)
		}
		if f < float64(minTimestampMillis) || f > float64(maxTimestampMillis) {
			return fmt.Errorf("%w: timestamp %s out of range", chat.ErrInvalidMessage, data)
		}
		ms = int64(f)
	}
	if ms < minTimestampMillis || ms > maxTimestampMillis {
		return fmt.Errorf("%w: timestamp %s out of range", chat.ErrInvalidMessage, data)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// decodeString reads a payload that is a bare JSON string.
func decodeString(data json.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidEvent, field)
	}
	return s, nil
}
