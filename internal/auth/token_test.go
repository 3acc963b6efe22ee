package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndInspect(t *testing.T) {
	token, expiresAt, err := Mint("test-secret", "665f1c2a9b1e8a0012345678", 5*time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	subject, exp, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if subject != "665f1c2a9b1e8a0012345678" {
		t.Fatalf("subject mismatch: got %s", subject)
	}
	if exp.Unix() != expiresAt.Unix() {
		t.Fatalf("expiry mismatch: got %v want %v", exp, expiresAt)
	}
}

func TestMint_VerifiesWithSecret(t *testing.T) {
	token, _, err := Mint("test-secret", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tk *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("expected token to verify with its secret: %v", err)
	}

	if _, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(tk *jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	}); err == nil {
		t.Fatal("expected verification with the wrong secret to fail")
	}
}

func TestMint_RequiresSecretAndUser(t *testing.T) {
	if _, _, err := Mint("", "user", time.Minute); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken without secret, got %v", err)
	}
	if _, _, err := Mint("secret", "", time.Minute); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken without user, got %v", err)
	}
}

func TestResolve_PrefersStatic(t *testing.T) {
	got, err := Resolve("static-token", "secret", "user", time.Minute)
	if err != nil || got != "static-token" {
		t.Fatalf("expected static token, got %q (%v)", got, err)
	}

	got, err = Resolve("", "secret", "user", time.Minute)
	if err != nil || got == "" {
		t.Fatalf("expected minted token, got %q (%v)", got, err)
	}
}

func TestInspect_Garbage(t *testing.T) {
	if _, _, err := Inspect("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	if Expired(time.Time{}, now) {
		t.Error("zero expiry should never expire")
	}
	if !Expired(now.Add(-time.Second), now) {
		t.Error("past expiry should be expired")
	}
	if Expired(now.Add(time.Minute), now) {
		t.Error("future expiry should not be expired")
	}
}
