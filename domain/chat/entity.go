package chat

import (
	"strings"
	"time"
)

// MessageType is the payload kind of a message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// Message is a single direct message between two users.
// Timestamp is supplied by the sending client and is authoritative for ordering.
type Message struct {
	ID         string      `gorm:"primaryKey;type:text" json:"id"`
	SenderID   string      `gorm:"not null;type:text;index:idx_messages_pair,priority:1" json:"sender_id"`
	ReceiverID string      `gorm:"not null;type:text;index:idx_messages_pair,priority:2" json:"receiver_id"`
	Content    string      `gorm:"not null;type:text" json:"content"`
	Type       MessageType `gorm:"not null;type:text" json:"type"`
	Timestamp  time.Time   `gorm:"column:sent_at;not null;index" json:"timestamp"`
	ReadAt     *time.Time  `json:"read_at,omitempty"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}

// Validate checks the fields required before a message is stored.
func (m *Message) Validate() error {
	switch {
	case m.SenderID == "", m.ReceiverID == "":
		return ErrInvalidMessage
	case m.SenderID == m.ReceiverID:
		return ErrInvalidMessage
	case strings.TrimSpace(m.Content) == "":
		return ErrInvalidMessage
	case !m.Type.Valid():
		return ErrInvalidMessage
	case m.Timestamp.IsZero():
		return ErrInvalidMessage
	}
	return nil
}

// IsRead reports whether the read timestamp has been set.
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// MarkRead sets the read timestamp once. It returns false if the
// message was already read, leaving the original timestamp untouched.
func (m *Message) MarkRead(at time.Time) bool {
	if m.IsRead() {
		return false
	}
	t := at.UTC()
	m.ReadAt = &t
	return true
}

// IsParticipant reports whether userID is the sender or the receiver.
func (m *Message) IsParticipant(userID string) bool {
	return userID == m.SenderID || userID == m.ReceiverID
}

// Participant carries the display attributes of one side of a message.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// FormattedMessage is the client-facing shape of a message.
type FormattedMessage struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	Sender     Participant `json:"sender"`
	Receiver   Participant `json:"receiver"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	ReadStatus *time.Time  `json:"readStatus"`
}

// Format combines a message with its participants' display attributes.
func Format(m *Message, sender, receiver Participant) FormattedMessage {
	return FormattedMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Sender:     sender,
		Receiver:   receiver,
		Content:    m.Content,
		Type:       m.Type,
		Timestamp:  m.Timestamp,
		ReadStatus: m.ReadAt,
	}
}
