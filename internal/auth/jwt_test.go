package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-signing-key", time.Hour)

	token, expiresAt, err := manager.GenerateToken("123456", "jane@gmail.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) < 55*time.Minute {
		t.Errorf("expiresAt too soon: %v", expiresAt)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "123456" {
		t.Errorf("UserID = %q, want 123456", claims.UserID)
	}
	if claims.Email != "jane@gmail.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Role != "user" {
		t.Errorf("Role = %q", claims.Role)
	}
	if claims.Issuer != "veyl-server" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestValidateTokenWrongKey(t *testing.T) {
	issuer := NewJWTManager("key-a", time.Hour)
	verifier := NewJWTManager("key-b", time.Hour)

	token, _, err := issuer.GenerateToken("123456", "", "user")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := verifier.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-signing-key", -time.Minute)

	token, _, err := manager.GenerateToken("123456", "", "user")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := manager.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	manager := NewJWTManager("test-signing-key", time.Hour)

	if _, err := manager.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
