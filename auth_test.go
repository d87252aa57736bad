package main

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T, password string) *Auth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return NewAuth(AdminConfig{PasswordHash: string(hash), JWTSecret: "test-secret", TokenTTL: 1}, nil)
}

func TestAuthLogin(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	token, err := a.Login("hunter2", "10.0.0.1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := a.ValidateToken(token); err != nil {
		t.Errorf("issued token should validate: %v", err)
	}
}

func TestAuthWrongPassword(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	if _, err := a.Login("hunter3", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthRateLimit(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	for i := 0; i < maxLoginAttempts; i++ {
		a.Login("wrong", "10.0.0.2")
	}
	if _, err := a.Login("hunter2", "10.0.0.2"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if _, err := a.Login("hunter2", "10.0.0.3"); err != nil {
		t.Errorf("other addresses are not limited: %v", err)
	}
}

func TestAuthDisabled(t *testing.T) {
	a := NewAuth(AdminConfig{}, nil)
	if a.Enabled() {
		t.Error("auth without a password hash should be disabled")
	}
	if _, err := a.Login("", "10.0.0.1"); !errors.Is(err, ErrAdminDisabled) {
		t.Errorf("expected ErrAdminDisabled, got %v", err)
	}
}

func TestAuthRejectsForeignTokens(t *testing.T) {
	a := newTestAuth(t, "pw")

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": adminSubject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	forged, _ := other.SignedString([]byte("another-secret"))
	if err := a.ValidateToken(forged); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("token with wrong key should fail, got %v", err)
	}

	player := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "player",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := player.SignedString([]byte("test-secret"))
	if err := a.ValidateToken(signed); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-admin subject should fail, got %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": adminSubject,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, _ = expired.SignedString([]byte("test-secret"))
	if err := a.ValidateToken(signed); err == nil {
		t.Error("expired token should fail")
	}

	if err := a.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage should fail")
	}
}

func TestAuthSecretPersisted(t *testing.T) {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	first := loadOrCreateSecret(db)
	second := loadOrCreateSecret(db)
	if string(first) != string(second) || len(first) != 32 {
		t.Error("secret should be generated once and reused")
	}
}
