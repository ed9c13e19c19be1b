package session

import (
	"errors"

	"github.com/example/dm-chat-server/domain/chat"
	"github.com/example/dm-chat-server/modules/auth"
)

var (
	// ErrIdentityMismatch is returned when the user id claimed in the
	// handshake differs from the id carried by the verified token.
	ErrIdentityMismatch = errors.New("identity mismatch")
	// ErrInvalidEvent indicates a frame that is not a valid envelope or
	// whose payload does not match its event.
	ErrInvalidEvent = errors.New("invalid event payload")
	// ErrUnknownEvent indicates an event name the session does not handle.
	ErrUnknownEvent = errors.New("unknown event")
)

const genericFailure = "Something went wrong, please try again"

// IsAuthError reports whether err should terminate connection setup.
func IsAuthError(err error) bool {
	return auth.IsCredentialError(err) || errors.Is(err, ErrIdentityMismatch)
}

// chatErrorMessage turns a handler error into the string sent with
// chat_error. Persistence and unexpected errors never leak details.
func chatErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrPersistence):
		return genericFailure
	case errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrUnknownEvent),
		errors.Is(err, chat.ErrInvalidMessage),
		errors.Is(err, chat.ErrReceiverNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, chat.ErrUnauthorized):
		return err.Error()
	default:
		return genericFailure
	}
}
