// Package session implements the per-connection messaging protocol:
// authentication, room membership, and the message lifecycle.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/example/dm-chat-server/domain/chat"
	"github.com/example/dm-chat-server/domain/user"
	"github.com/example/dm-chat-server/modules/broadcast"
	"github.com/example/dm-chat-server/modules/message"
	"github.com/example/dm-chat-server/modules/presence"
	"github.com/example/dm-chat-server/pkg/keylock"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Verifier checks a raw Authorization value.
type Verifier interface {
	VerifyCredential(ctx context.Context, credential string) (*user.Identity, error)
}

// UserDirectory resolves display attributes. FindUser returns an error
// wrapping auth.ErrUserNotFound for unknown ids.
type UserDirectory interface {
	FindUser(ctx context.Context, userID string) (*user.Profile, error)
}

// PresenceTracker records connects and disconnects.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, userID string) (presence.Snapshot, error)
	MarkOffline(ctx context.Context, userID string) (presence.Snapshot, error)
}

// Router delivers frames to connections.
type Router interface {
	Register(client *broadcast.Client)
	Unregister(clientID string)
	JoinRoom(clientID, room string) bool
	BroadcastToRoom(room, event string, payload any) (int, error)
	Unicast(clientID, event string, payload any) error
	FindOtherConnections(userID, excludingRoom string) []string
	UserInRoom(userID, room string) bool
	UserConnectionCount(userID string) int
}

// Dependencies are the collaborators of a Manager. Events may be nil.
type Dependencies struct {
	Verifier Verifier
	Users    UserDirectory
	Presence PresenceTracker
	Messages message.MessagePort
	Router   Router
	Events   EventPublisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithSendBuffer sets the outbound queue size of each connection.
func WithSendBuffer(n int) Option {
	return func(m *Manager) { m.sendBuffer = n }
}

// WithClock replaces time.Now for read receipts.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces the message and connection id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// Manager authenticates connections and creates Sessions.
type Manager struct {
	deps       Dependencies
	locks      *keylock.Locker // per message id
	users      *keylock.Locker // per user id, orders registration with presence
	sendBuffer int
	now        func() time.Time
	newID      func() string
	logger     types.Logger
}

// NewManager creates a Manager.
func NewManager(deps Dependencies, logger types.Logger, opts ...Option) *Manager {
	m := &Manager{
		deps:       deps,
		locks:      keylock.New(),
		users:      keylock.New(),
		sendBuffer: 256,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handshake is what the transport extracts from the upgrade request.
type Handshake struct {
	Authorization string
	ClaimedUserID string
}

// Connect authenticates a handshake and registers the connection. On error
// nothing has been registered and presence is untouched.
func (m *Manager) Connect(ctx context.Context, h Handshake) (*Session, error) {
	identity, err := m.deps.Verifier.VerifyCredential(ctx, h.Authorization)
	if err != nil {
		return nil, err
	}
	if h.ClaimedUserID != "" && h.ClaimedUserID != identity.UserID {
		return nil, fmt.Errorf("%w: claimed %s", ErrIdentityMismatch, h.ClaimedUserID)
	}

	client := broadcast.NewClient(m.newID(), identity.UserID, identity.DisplayName, m.sendBuffer)

	unlock := m.users.Lock(identity.UserID)
	m.deps.Router.Register(client)
	if _, err := m.deps.Presence.MarkOnline(ctx, identity.UserID); err != nil {
		m.logger.Warn("Failed to mark user online", "user_id", identity.UserID, "error", err)
	}
	unlock()

	m.logger.Info("Session connected", "user_id", identity.UserID, "connection_id", client.ID)
	return &Session{
		manager:  m,
		client:   client,
		identity: *identity,
	}, nil
}

// participant resolves display attributes, falling back to the bare id when
// the directory cannot.
func (m *Manager) participant(ctx context.Context, userID string, cache map[string]chat.Participant) chat.Participant {
	if p, ok := cache[userID]; ok {
		return p
	}
	p := chat.Participant{ID: userID}
	profile, err := m.deps.Users.FindUser(ctx, userID)
	if err != nil {
		m.logger.Warn("Failed to resolve participant", "user_id", userID, "error", err)
	} else {
		p.Name = profile.DisplayName
		p.Avatar = profile.AvatarURL
	}
	if cache != nil {
		cache[userID] = p
	}
	return p
}
