package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message has been stored and broadcast.
type MessageSentEvent struct {
	MessageID  string    `json:"message_id"`
	RoomKey    string    `json:"room_key"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// NotificationRequestedEvent is emitted when the receiver of a message has
// no connection joined to the conversation. An external dispatcher may turn
// it into a push notification.
type NotificationRequestedEvent struct {
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	ReceiverID     string    `json:"receiver_id"`
	MessageContent string    `json:"message_content"`
	MessageType    string    `json:"message_type"`
	Timestamp      time.Time `json:"timestamp"`
}

// PresenceChangedEvent is emitted when a user goes online or offline.
type PresenceChangedEvent struct {
	UserID     string    `json:"user_id"`
	Online     bool      `json:"online"`
	LastActive time.Time `json:"last_active"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	NotificationRequestedV1 = helper.EventDefinition[NotificationRequestedEvent](
		"chat",
		"NotificationRequested",
		"v1",
	)

	PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
		"presence",
		"PresenceChanged",
		"v1",
	)
)
