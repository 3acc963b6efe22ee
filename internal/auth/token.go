// Package auth supplies the bearer token the clients present to the
// backend and the metrics socket.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("no token configured")

// Mint issues an HS256 token whose subject is userID, the claim the backend
// reads as the caller's identity. Meant for local development against a
// backend sharing secret.
func Mint(secret, userID string, ttl time.Duration) (string, time.Time, error) {
	if secret == "" || userID == "" {
		return "", time.Time{}, ErrNoToken
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Resolve returns static when set, otherwise a token minted from secret and
// userID.
func Resolve(static, secret, userID string, ttl time.Duration) (string, error) {
	if static != "" {
		return static, nil
	}
	token, _, err := Mint(secret, userID, ttl)
	return token, err
}

// Inspect reads the subject and expiry of a token without verifying its
// signature. The clients only use it to warn about stale tokens early.
func Inspect(token string) (subject string, expiresAt time.Time, err error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return claims.Subject, expiresAt, nil
}

// Expired reports whether a token carrying expiresAt is no longer usable.
// A zero expiry never expires.
func Expired(expiresAt time.Time, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
