// Package room derives the canonical key of a two-party conversation.
package room

import (
	"errors"
	"strings"
)

// Separator joins the two participant ids of a room key.
const Separator = "_"

// ErrInvalidParticipant is returned for ids that cannot form a room key.
var ErrInvalidParticipant = errors.New("invalid participant id")

// Resolve returns the room key for the unordered pair {a, b}.
// Resolve(a, b) == Resolve(b, a) for all inputs.
func Resolve(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// ValidateParticipantID rejects ids that would make a key ambiguous.
// An id containing the separator could collide with another pair.
func ValidateParticipantID(id string) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, Separator) {
		return ErrInvalidParticipant
	}
	return nil
}
