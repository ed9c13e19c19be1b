package message

import (
	"errors"
	"fmt"

	domain "github.com/example/dm-chat-server/domain/chat"
)

// Service names registered in the message module's container.
const (
	ServiceInsert           = "insert-message"
	ServiceFind             = "find-message"
	ServiceFindConversation = "find-conversation"
	ServiceSave             = "save-message"
	ServiceDelete           = "delete-message"
)

const (
	codeNotFound  = "not_found"
	codeInvalid   = "invalid_message"
	codeDuplicate = "duplicate"
)

// Status carries a domain failure in a reply.
type Status struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Err rebuilds the sentinel for the status code, or nil.
func (s Status) Err() error {
	switch s.Code {
	case "":
		return nil
	case codeNotFound:
		return domain.ErrMessageNotFound
	case codeInvalid:
		return domain.ErrInvalidMessage
	case codeDuplicate:
		return ErrDuplicateMessage
	default:
		return fmt.Errorf("%s: %s", s.Code, s.Error)
	}
}

func statusFor(err error) (Status, error) {
	switch {
	case errors.Is(err, domain.ErrMessageNotFound):
		return Status{Code: codeNotFound, Error: err.Error()}, nil
	case errors.Is(err, domain.ErrInvalidMessage):
		return Status{Code: codeInvalid, Error: err.Error()}, nil
	case errors.Is(err, ErrDuplicateMessage):
		return Status{Code: codeDuplicate, Error: err.Error()}, nil
	default:
		return Status{}, err
	}
}

// MessageRequest carries a whole message for insert and save.
type MessageRequest struct {
	Message domain.Message `json:"message"`
}

// MessageIDRequest addresses a message by id.
type MessageIDRequest struct {
	MessageID string `json:"message_id"`
}

// ConversationRequest asks for one page of the conversation between two
// users. Limit is clamped to the module's page size.
type ConversationRequest struct {
	UserA string  `json:"user_a"`
	UserB string  `json:"user_b"`
	After *Cursor `json:"after,omitempty"`
	Limit int     `json:"limit,omitempty"`
}

// MessageResponse returns one message.
type MessageResponse struct {
	Status
	Message *domain.Message `json:"message,omitempty"`
}

// ConversationResponse returns one page in ascending order. Next is set when
// more messages may follow.
type ConversationResponse struct {
	Status
	Messages []domain.Message `json:"messages"`
	Next     *Cursor          `json:"next,omitempty"`
}

// AckResponse is returned by write-only services.
type AckResponse struct {
	Status
	Success bool `json:"success"`
}
