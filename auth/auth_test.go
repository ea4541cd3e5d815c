package auth

import (
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(&Config{Secret: "test-secret", Issuer: "streamhub-test"})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestService_GenerateAndParse(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Generate("u1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("expected user u1, got %q", claims.UserID)
	}
	if claims.Subject != "u1" {
		t.Errorf("expected subject u1, got %q", claims.Subject)
	}
}

func TestService_RejectsTamperedToken(t *testing.T) {
	svc := newTestService(t)
	token, _ := svc.Generate("u1")

	if _, err := svc.Parse(token + "x"); err == nil {
		t.Error("expected tampered token to fail")
	}

	other, _ := NewService(&Config{Secret: "different-secret"})
	if _, err := other.Parse(token); err == nil {
		t.Error("expected wrong-secret parse to fail")
	}
}

func TestService_RejectsExpiredToken(t *testing.T) {
	svc, err := NewService(&Config{Secret: "s", TokenTTL: -time.Minute})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	token, _ := svc.Generate("u1")
	if _, err := svc.Parse(token); err == nil {
		t.Error("expected expired token to fail")
	}
}

func TestService_IssuerEnforced(t *testing.T) {
	issuing, _ := NewService(&Config{Secret: "s", Issuer: "a"})
	verifying, _ := NewService(&Config{Secret: "s", Issuer: "b"})

	token, _ := issuing.Generate("u1")
	if _, err := verifying.Parse(token); err == nil {
		t.Error("expected issuer mismatch to fail")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{RequiredForStream: true}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "secret") {
		t.Errorf("expected missing-secret error, got %v", err)
	}

	cfg = &Config{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected anonymous-only config to validate, got %v", err)
	}
}
