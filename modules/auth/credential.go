package auth

import (
	"errors"
	"strings"
)

const bearerPrefix = "Bearer "

var (
	// ErrMissingCredential is returned when no credential was presented.
	ErrMissingCredential = errors.New("missing credential")
	// ErrMalformedCredential is returned when the credential is not "Bearer <token>".
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrInvalidCredential is returned when the token is well formed but invalid or expired.
	ErrInvalidCredential = errors.New("invalid credential")
)

// ParseBearer extracts the token from an "Authorization: Bearer <token>" value.
func ParseBearer(credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", ErrMissingCredential
	}
	if !strings.HasPrefix(credential, bearerPrefix) {
		return "", ErrMalformedCredential
	}
	token := strings.TrimSpace(strings.TrimPrefix(credential, bearerPrefix))
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedCredential
	}
	return token, nil
}

// IsCredentialError reports whether err belongs to the credential taxonomy.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrInvalidCredential)
}
