package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MinCost)

	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("Hash() returned the plaintext")
	}

	if !hasher.Verify("correct horse", hash) {
		t.Error("Verify() = false for the right password")
	}
	if hasher.Verify("wrong horse", hash) {
		t.Error("Verify() = true for the wrong password")
	}
}

func TestNewPasswordHasherWithCost_Clamps(t *testing.T) {
	tests := []struct {
		cost int
		want int
	}{
		{cost: 1, want: bcrypt.MinCost},
		{cost: 10, want: 10},
		{cost: 99, want: bcrypt.MaxCost},
	}
	for _, tt := range tests {
		if got := NewPasswordHasherWithCost(tt.cost).cost; got != tt.want {
			t.Errorf("NewPasswordHasherWithCost(%d).cost = %d, want %d", tt.cost, got, tt.want)
		}
	}
	if got := NewPasswordHasher().cost; got != DefaultBcryptCost {
		t.Errorf("NewPasswordHasher().cost = %d, want %d", got, DefaultBcryptCost)
	}
}
