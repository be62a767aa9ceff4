package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	config := JWTConfig{
		SecretKey:     "test-secret-key",
		TokenDuration: 15 * time.Minute,
		Issuer:        "test-issuer",
	}
	manager := NewJWTManager(config)

	token, err := manager.GenerateToken("user-123", "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, "user-123")
	}
	if claims.Username != "alice" {
		t.Errorf("claims.Username = %v, want %v", claims.Username, "alice")
	}
	if claims.Issuer != config.Issuer {
		t.Errorf("claims.Issuer = %v, want %v", claims.Issuer, config.Issuer)
	}
	if got := manager.TokenDuration(); got != 900 {
		t.Errorf("TokenDuration() = %d, want 900", got)
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager(JWTConfig{
		SecretKey:     "test-secret-key",
		TokenDuration: -time.Minute,
		Issuer:        "test-issuer",
	})

	token, err := manager.GenerateToken("user-123", "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = manager.ValidateToken(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTManager_InvalidTokens(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig())

	other := NewJWTManager(JWTConfig{
		SecretKey:     "another-secret",
		TokenDuration: time.Hour,
		Issuer:        "chat-app",
	})
	foreignSecret, _ := other.GenerateToken("user-1", "mallory")

	otherIssuer := NewJWTManager(JWTConfig{
		SecretKey:     DefaultJWTConfig().SecretKey,
		TokenDuration: time.Hour,
		Issuer:        "someone-else",
	})
	foreignIssuer, _ := otherIssuer.GenerateToken("user-1", "mallory")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"wrong secret", foreignSecret},
		{"wrong issuer", foreignIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.ValidateToken(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
