package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/dm-chat-server/domain/chat"
	"github.com/example/dm-chat-server/domain/user"
	"github.com/example/dm-chat-server/events"
	"github.com/example/dm-chat-server/modules/auth"
	"github.com/example/dm-chat-server/modules/broadcast"
	"github.com/example/dm-chat-server/modules/room"
)

// Session is one authenticated connection. Handle must be called from a
// single goroutine so that a client's events are processed in order.
type Session struct {
	manager   *Manager
	client    *broadcast.Client
	identity  user.Identity
	closeOnce sync.Once
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.connID()
}

// UserID returns the verified user id.
func (s *Session) UserID() string {
	return s.identity.UserID
}

// Identity returns the verified identity.
func (s *Session) Identity() user.Identity {
	return s.identity
}

// Outbound returns the queue of encoded frames for this connection.
func (s *Session) Outbound() <-chan []byte {
	return s.client.Outbound()
}

// Handle processes one inbound frame. Failures are reported to this
// connection as chat_error; the session stays usable.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		s.reportError(EventChatError, fmt.Errorf("%w: malformed frame", ErrInvalidEvent))
		return
	}

	var err error
	switch env.Event {
	case EventJoinRoom:
		err = s.joinRoom(ctx, env.Data)
	case EventSendMessage:
		err = s.sendMessage(ctx, env.Data)
	case EventUpdateReadStatus:
		err = s.updateReadStatus(ctx, env.Data)
	case EventDeleteMessage:
		err = s.deleteMessage(ctx, env.Data)
	case EventUpdateMessage:
		err = s.updateMessage(ctx, env.Data)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}

	if err != nil {
		s.reportError(env.Event, err)
	}
}

// Close releases the connection and marks the user offline once their last
// connection is gone. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		m := s.manager
		userID := s.identity.UserID

		unlock := m.users.Lock(userID)
		m.deps.Router.Unregister(s.connID())
		remaining := m.deps.Router.UserConnectionCount(userID)
		if remaining == 0 {
			if _, err := m.deps.Presence.MarkOffline(ctx, userID); err != nil {
				m.logger.Warn("Failed to mark user offline", "user_id", userID, "error", err)
			}
		}
		unlock()

		m.logger.Info("Session disconnected", "user_id", userID, "connection_id", s.connID(), "remaining_connections", remaining)
	})
}

func (s *Session) connID() string {
	return s.client.ID
}

func (s *Session) reportError(event string, err error) {
	m := s.manager
	if errors.Is(err, chat.ErrPersistence) {
		m.logger.Error("Event failed", "event", event, "user_id", s.identity.UserID, "error", err)
	} else {
		m.logger.Debug("Event rejected", "event", event, "user_id", s.identity.UserID, "error", err)
	}
	if uerr := m.deps.Router.Unicast(s.connID(), EventChatError, chatErrorMessage(err)); uerr != nil {
		m.logger.Debug("Failed to deliver chat_error", "connection_id", s.connID(), "error", uerr)
	}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", chat.ErrPersistence, op, err)
}

func (s *Session) joinRoom(ctx context.Context, data json.RawMessage) error {
	peerID, err := decodeString(data, "peerId")
	if err != nil {
		return err
	}
	self := s.identity.UserID
	if room.ValidateParticipantID(peerID) != nil || peerID == self {
		return fmt.Errorf("%w: invalid peerId", ErrInvalidEvent)
	}

	m := s.manager
	key := room.Resolve(self, peerID)
	m.deps.Router.JoinRoom(s.connID(), key)

	msgs, err := m.deps.Messages.FindByParticipants(ctx, self, peerID)
	if err != nil {
		return persistence("load history", err)
	}

	cache := make(map[string]chat.Participant, 2)
	history := make([]chat.FormattedMessage, 0, len(msgs))
	for i := range msgs {
		msg := &msgs[i]
		history = append(history, chat.Format(msg,
			m.participant(ctx, msg.SenderID, cache),
			m.participant(ctx, msg.ReceiverID, cache),
		))
	}

	return m.deps.Router.Unicast(s.connID(), EventChatHistory, history)
}

func (s *Session) sendMessage(ctx context.Context, data json.RawMessage) error {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrInvalidMessage, err)
	}
	if p.ReceiverID == "" || strings.TrimSpace(p.Content) == "" || p.Timestamp.IsZero() || p.Type == "" {
		return fmt.Errorf("%w: receiverId, content, timestamp and type are required", chat.ErrInvalidMessage)
	}
	if room.ValidateParticipantID(p.ReceiverID) != nil {
		return fmt.Errorf("%w: invalid receiverId", chat.ErrInvalidMessage)
	}

	m := s.manager
	self := s.identity.UserID
	msg := &chat.Message{
		ID:         m.newID(),
		SenderID:   self,
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
		Type:       p.Type,
		Timestamp:  p.Timestamp.UTC(),
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	receiverProfile, err := m.deps.Users.FindUser(ctx, p.ReceiverID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return chat.ErrReceiverNotFound
		}
		return persistence("find receiver", err)
	}

	if err := m.deps.Messages.Insert(ctx, msg); err != nil {
		return persistence("insert message", err)
	}

	sender := m.participant(ctx, self, nil)
	if sender.Name == "" {
		sender.Name = s.identity.DisplayName
	}
	receiver := chat.Participant{
		ID:     receiverProfile.ID,
		Name:   receiverProfile.DisplayName,
		Avatar: receiverProfile.AvatarURL,
	}

	key := room.Resolve(self, p.ReceiverID)
	if _, err := m.deps.Router.BroadcastToRoom(key, EventReceiveMessage, chat.Format(msg, sender, receiver)); err != nil {
		m.logger.Error("Failed to broadcast message", "message_id", msg.ID, "error", err)
	}

	notification := NotificationPayload{
		SenderID:       self,
		SenderName:     sender.Name,
		MessageContent: msg.Content,
		MessageType:    msg.Type,
		ReceiverID:     msg.ReceiverID,
	}
	for _, connID := range m.deps.Router.FindOtherConnections(msg.ReceiverID, key) {
		if err := m.deps.Router.Unicast(connID, EventLocalNotification, notification); err != nil {
			m.logger.Debug("Notification trigger not delivered", "connection_id", connID, "error", err)
		}
	}

	s.publish(msg, key, sender.Name)
	return nil
}

func (s *Session) publish(msg *chat.Message, key, senderName string) {
	m := s.manager
	if m.deps.Events == nil {
		return
	}
	if err := m.deps.Events.MessageSent(events.MessageSentEvent{
		MessageID:  msg.ID,
		RoomKey:    key,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Type:       string(msg.Type),
		Timestamp:  msg.Timestamp,
	}); err != nil {
		m.logger.Warn("Failed to publish MessageSent event", "message_id", msg.ID, "error", err)
	}

	if m.deps.Router.UserInRoom(msg.ReceiverID, key) {
		return
	}
	if err := m.deps.Events.NotificationRequested(events.NotificationRequestedEvent{
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		SenderName:     senderName,
		ReceiverID:     msg.ReceiverID,
		MessageContent: msg.Content,
		MessageType:    string(msg.Type),
		Timestamp:      msg.Timestamp,
	}); err != nil {
		m.logger.Warn("Failed to publish NotificationRequested event", "message_id", msg.ID, "error", err)
	}
}

func (s *Session) updateReadStatus(ctx context.Context, data json.RawMessage) error {
	messageID, err := decodeString(data, "messageId")
	if err != nil {
		return err
	}

	m := s.manager
	unlock := m.locks.Lock(messageID)
	defer unlock()

	msg, err := m.deps.Messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			return nil
		}
		return persistence("find message", err)
	}
	if !msg.IsParticipant(s.identity.UserID) {
		return fmt.Errorf("%w: not a participant of this conversation", chat.ErrUnauthorized)
	}
	if !msg.MarkRead(m.now()) {
		return nil
	}
	if err := m.deps.Messages.Save(ctx, msg); err != nil {
		return persistence("save read status", err)
	}

	key := room.Resolve(msg.SenderID, msg.ReceiverID)
	s.broadcastChange(key, EventMessageRead, msg.ID, MessageReadPayload{
		MessageID:  msg.ID,
		ReadStatus: *msg.ReadAt,
	})
	return nil
}

func (s *Session) deleteMessage(ctx context.Context, data json.RawMessage) error {
	messageID, err := decodeString(data, "messageId")
	if err != nil {
		return err
	}

	m := s.manager
	unlock := m.locks.Lock(messageID)
	defer unlock()

	msg, err := s.findOwned(ctx, messageID, "delete")
	if err != nil {
		return err
	}
	if err := m.deps.Messages.DeleteByID(ctx, messageID); err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			return chat.ErrMessageNotFound
		}
		return persistence("delete message", err)
	}

	key := room.Resolve(msg.SenderID, msg.ReceiverID)
	s.broadcastChange(key, EventMessageDeleted, msg.ID, MessageDeletedPayload{MessageID: msg.ID})
	return nil
}

func (s *Session) updateMessage(ctx context.Context, data json.RawMessage) error {
	var p UpdateMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if p.MessageID == "" || strings.TrimSpace(p.NewContent) == "" {
		return fmt.Errorf("%w: messageId and newContent are required", ErrInvalidEvent)
	}

	m := s.manager
	unlock := m.locks.Lock(p.MessageID)
	defer unlock()

	msg, err := s.findOwned(ctx, p.MessageID, "edit")
	if err != nil {
		return err
	}
	if msg.Type != chat.MessageTypeText {
		return fmt.Errorf("%w: only text messages can be edited", chat.ErrUnauthorized)
	}

	msg.Content = p.NewContent
	if err := m.deps.Messages.Save(ctx, msg); err != nil {
		return persistence("save message", err)
	}

	key := room.Resolve(msg.SenderID, msg.ReceiverID)
	s.broadcastChange(key, EventMessageUpdated, msg.ID, MessageUpdatedPayload{
		MessageID:  msg.ID,
		NewContent: msg.Content,
		Timestamp:  msg.Timestamp,
	})
	return nil
}

// broadcastChange fans out a change that is already stored. A failed
// broadcast is logged only; the caller's request has succeeded.
func (s *Session) broadcastChange(key, event, messageID string, payload any) {
	if _, err := s.manager.deps.Router.BroadcastToRoom(key, event, payload); err != nil {
		s.manager.logger.Error("Failed to broadcast change", "event", event, "message_id", messageID, "error", err)
	}
}

// findOwned loads a message the caller must have sent.
func (s *Session) findOwned(ctx context.Context, messageID, action string) (*chat.Message, error) {
	msg, err := s.manager.deps.Messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			return nil, chat.ErrMessageNotFound
		}
		return nil, persistence("find message", err)
	}
	if msg.SenderID != s.identity.UserID {
		return nil, fmt.Errorf("%w: only the sender can %s this message", chat.ErrUnauthorized, action)
	}
	return msg, nil
}
