package auth

import (
	"errors"
	"testing"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		wantToken  string
		wantErr    error
	}{
		{name: "valid", credential: "Bearer abc.def.ghi", wantToken: "abc.def.ghi"},
		{name: "empty", credential: "", wantErr: ErrMissingCredential},
		{name: "whitespace only", credential: "   ", wantErr: ErrMissingCredential},
		{name: "wrong scheme", credential: "Token abc", wantErr: ErrMalformedCredential},
		{name: "basic scheme", credential: "Basic dXNlcjpwYXNz", wantErr: ErrMalformedCredential},
		{name: "lowercase scheme", credential: "bearer abc", wantErr: ErrMalformedCredential},
		{name: "no token", credential: "Bearer ", wantErr: ErrMalformedCredential},
		{name: "bare token", credential: "abc.def.ghi", wantErr: ErrMalformedCredential},
		{name: "two tokens", credential: "Bearer a b", wantErr: ErrMalformedCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ParseBearer(tt.credential)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseBearer(%q) error = %v, want %v", tt.credential, err, tt.wantErr)
			}
			if token != tt.wantToken {
				t.Errorf("ParseBearer(%q) = %q, want %q", tt.credential, token, tt.wantToken)
			}
		})
	}
}

func TestIsCredentialError(t *testing.T) {
	if !IsCredentialError(ErrMalformedCredential) {
		t.Error("IsCredentialError(ErrMalformedCredential) = false")
	}
	if !IsCredentialError(errors.Join(ErrInvalidCredential, ErrExpiredToken)) {
		t.Error("IsCredentialError(joined invalid) = false")
	}
	if IsCredentialError(ErrUserNotFound) {
		t.Error("IsCredentialError(ErrUserNotFound) = true")
	}
}
