package chat

import "errors"

var (
	// ErrInvalidMessage indicates a missing or malformed message field.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrReceiverNotFound indicates the addressed receiver does not exist.
	ErrReceiverNotFound = errors.New("receiver not found")
	// ErrMessageNotFound indicates the message was not found.
	ErrMessageNotFound = errors.New("message not found")
	// ErrUnauthorized indicates the caller may not mutate the message.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPersistence indicates the message store rejected a write or read.
	ErrPersistence = errors.New("persistence failure")
)
