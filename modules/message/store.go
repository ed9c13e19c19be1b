// Package message persists direct messages and serves them to other modules.
package message

import (
	"context"
	"time"

	domain "github.com/example/dm-chat-server/domain/chat"
)

// Store persists messages. A nil error from a write means the write is durable.
type Store interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error
	Insert(ctx context.Context, msg *domain.Message) error
	// FindByID returns domain.ErrMessageNotFound when no row matches.
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// FindConversationPage returns up to limit messages exchanged between a
	// and b in either direction, ascending by timestamp with id as tie-break,
	// starting strictly after the cursor (from the beginning when nil).
	FindConversationPage(ctx context.Context, a, b string, after *Cursor, limit int) ([]domain.Message, error)
	// Save inserts or replaces the whole row.
	Save(ctx context.Context, msg *domain.Message) error
	// DeleteByID returns domain.ErrMessageNotFound when no row was removed.
	DeleteByID(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
	// Driver names the backend for health output.
	Driver() string
}

// Cursor is the position of the last message of a conversation page.
type Cursor struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}

// CursorOf returns the cursor positioned at msg.
func CursorOf(msg *domain.Message) *Cursor {
	return &Cursor{Timestamp: msg.Timestamp, ID: msg.ID}
}
