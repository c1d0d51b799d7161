package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager([]byte("test-secret"), "seatwise", time.Hour)

	token, err := manager.Generate("op-123", "admin@example.com", "operator")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if claims.OperatorID != "op-123" {
		t.Fatalf("expected operator op-123, got %q", claims.OperatorID)
	}
	if claims.Issuer != "seatwise" {
		t.Fatalf("expected issuer seatwise, got %q", claims.Issuer)
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	manager := NewTokenManager([]byte("test-secret"), "seatwise", time.Hour)
	other := NewTokenManager([]byte("other-secret"), "seatwise", time.Hour)

	token, err := manager.Generate("op-123", "", "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if _, err := other.Validate(token); err == nil {
		t.Fatal("expected validation to fail with wrong key")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	manager := NewTokenManager([]byte("test-secret"), "seatwise", -time.Minute)

	token, err := manager.Generate("op-123", "", "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if _, err := manager.Validate(token); err == nil {
		t.Fatal("expected validation to fail for expired token")
	}
}
