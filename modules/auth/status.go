package auth

import (
	"errors"
	"fmt"
)

// domainErrors are reported in-band so that callers across the service
// container can recover them with errors.Is.
var domainErrors = []struct {
	err  error
	code string
}{
	{ErrInvalidCredentials, CodeInvalidCredentials},
	{ErrUserNotFound, CodeUserNotFound},
	{ErrUserExists, CodeUserExists},
	{ErrInvalidEmail, CodeValidation},
	{ErrWeakPassword, CodeValidation},
	{ErrPasswordTooLong, CodeValidation},
	{ErrInvalidDisplayName, CodeValidation},
	{ErrExpiredToken, CodeExpiredToken},
	{ErrInvalidToken, CodeInvalidToken},
}

// statusFor converts a service error into a reply status. Errors outside
// the domain set are returned unchanged for the transport to report.
func statusFor(err error) (Status, error) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return Status{Code: d.code, Error: d.err.Error()}, nil
		}
	}
	return Status{}, err
}

// Err rebuilds the sentinel carried by a reply status, or nil.
func (s Status) Err() error {
	if s.Code == "" {
		return nil
	}
	for _, d := range domainErrors {
		if d.code == s.Code && d.err.Error() == s.Error {
			return d.err
		}
	}
	for _, d := range domainErrors {
		if d.code == s.Code {
			return fmt.Errorf("%w: %s", d.err, s.Error)
		}
	}
	return fmt.Errorf("%s: %s", s.Code, s.Error)
}
