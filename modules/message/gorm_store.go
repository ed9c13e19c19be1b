package message

import (
	"context"
	"errors"

	domain "github.com/example/dm-chat-server/domain/chat"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore stores messages in SQLite through GORM.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenGormStore opens (or creates) the SQLite database at path.
func OpenGormStore(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return NewGormStore(db), nil
}

// NewGormStore wraps an existing GORM handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the messages table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&domain.Message{})
}

// Insert stores a new message.
func (s *GormStore) Insert(ctx context.Context, msg *domain.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// FindByID finds a message by ID.
func (s *GormStore) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// FindConversationPage returns one page of the conversation between a and b.
func (s *GormStore) FindConversationPage(ctx context.Context, a, b string, after *Cursor, limit int) ([]domain.Message, error) {
	q := s.db.WithContext(ctx).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a)
	if after != nil {
		ts := after.Timestamp.UTC()
		q = q.Where("(sent_at > ? OR (sent_at = ? AND id > ?))", ts, ts, after.ID)
	}

	var msgs []domain.Message
	err := q.Order("sent_at ASC, id ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Save upserts the message.
func (s *GormStore) Save(ctx context.Context, msg *domain.Message) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(msg).Error
}

// DeleteByID removes a message.
func (s *GormStore) DeleteByID(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&domain.Message{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Driver names the backend.
func (s *GormStore) Driver() string {
	return "sqlite"
}
