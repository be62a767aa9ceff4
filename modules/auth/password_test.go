package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"unicode password", "密码密码123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if hash == "" || hash == tt.password {
				t.Fatalf("Hash() returned %q", hash)
			}
			if !hasher.Verify(tt.password, hash) {
				t.Error("Verify() returned false for correct password")
			}
			if hasher.Verify(tt.password+"x", hash) {
				t.Error("Verify() returned true for wrong password")
			}
		})
	}
}

func TestNewPasswordHasherWithCost_OutOfRange(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MaxCost + 1)
	if hasher.cost != DefaultBcryptCost {
		t.Errorf("cost = %d, want %d", hasher.cost, DefaultBcryptCost)
	}
}
