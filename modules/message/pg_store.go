package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/dm-chat-server/domain/chat"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateMessage is returned when an insert reuses an existing id.
var ErrDuplicateMessage = errors.New("message id already exists")

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		sender_id   TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content     TEXT NOT NULL,
		type        TEXT NOT NULL,
		sent_at     TIMESTAMPTZ NOT NULL,
		read_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id, sent_at)`,
}

const (
	insertMessage = `INSERT INTO messages (id, sender_id, receiver_id, content, type, sent_at, read_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getMessage = `SELECT id, sender_id, receiver_id, content, type, sent_at, read_at
FROM messages WHERE id = $1`

	listConversationPage = `SELECT id, sender_id, receiver_id, content, type, sent_at, read_at
FROM messages
WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
  AND ($3::timestamptz IS NULL OR (sent_at, id) > ($3::timestamptz, $4::text))
ORDER BY sent_at ASC, id ASC
LIMIT $5`

	upsertMessage = `INSERT INTO messages (id, sender_id, receiver_id, content, type, sent_at, read_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	sender_id = EXCLUDED.sender_id,
	receiver_id = EXCLUDED.receiver_id,
	content = EXCLUDED.content,
	type = EXCLUDED.type,
	sent_at = EXCLUDED.sent_at,
	read_at = EXCLUDED.read_at`

	deleteMessage = `DELETE FROM messages WHERE id = $1`
)

// PgStore stores messages in PostgreSQL through a pgx pool.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

// OpenPgStore connects to databaseURL and verifies the connection.
func OpenPgStore(ctx context.Context, databaseURL string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPgStore(pool), nil
}

// NewPgStore wraps an existing pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Migrate creates the messages table and index.
func (s *PgStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Insert stores a new message.
func (s *PgStore) Insert(ctx context.Context, msg *domain.Message) error {
	_, err := s.pool.Exec(ctx, insertMessage, messageArgs(msg)...)
	if err != nil {
		if isPgDuplicateKeyError(err) {
			return ErrDuplicateMessage
		}
		return err
	}
	return nil
}

// FindByID finds a message by ID.
func (s *PgStore) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx, getMessage, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// FindConversationPage returns one page of the conversation between a and b.
func (s *PgStore) FindConversationPage(ctx context.Context, a, b string, after *Cursor, limit int) ([]domain.Message, error) {
	var (
		afterAt *time.Time
		afterID string
	)
	if after != nil {
		ts := after.Timestamp.UTC()
		afterAt, afterID = &ts, after.ID
	}

	rows, err := s.pool.Query(ctx, listConversationPage, a, b, afterAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Save upserts the message.
func (s *PgStore) Save(ctx context.Context, msg *domain.Message) error {
	_, err := s.pool.Exec(ctx, upsertMessage, messageArgs(msg)...)
	return err
}

// DeleteByID removes a message.
func (s *PgStore) DeleteByID(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deleteMessage, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// Ping checks the pool.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

// Driver names the backend.
func (s *PgStore) Driver() string {
	return "pgx/v5"
}

func messageArgs(msg *domain.Message) []any {
	return []any{msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, string(msg.Type), msg.Timestamp, msg.ReadAt}
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		msg     domain.Message
		msgType string
	)
	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msgType, &msg.Timestamp, &msg.ReadAt); err != nil {
		return nil, err
	}
	msg.Type = domain.MessageType(msgType)
	msg.Timestamp = msg.Timestamp.UTC()
	if msg.ReadAt != nil {
		t := msg.ReadAt.UTC()
		msg.ReadAt = &t
	}
	return &msg, nil
}

// isPgDuplicateKeyError checks if error is a PostgreSQL unique violation.
func isPgDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
