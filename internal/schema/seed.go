package schema

import (
	"fmt"

	"together/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// SeedPasswordHash is the bcrypt hash of "password123" shared by the demo
// accounts.
const SeedPasswordHash = "$2b$12$K8PVqOGX9jCNSvv3xM2qZ.TQP0XR.fjrLPJYEIfMEmMuGTzwYMj2m"

const seedHashCost = 12

// SeedUsers returns the two demo accounts, each naming the other as partner.
// partner_id stays null; pairing happens through the API or LinkPartners.
func SeedUsers(passwordHash string) []models.User {
	return []models.User{
		{
			Name:               "Test User",
			Email:              "test@example.com",
			PasswordHash:       passwordHash,
			PartnerEmail:       "partner@example.com",
			EmailNotifications: true,
		},
		{
			Name:               "Partner User",
			Email:              "partner@example.com",
			PasswordHash:       passwordHash,
			PartnerEmail:       "test@example.com",
			EmailNotifications: true,
		},
	}
}

// SeedHash returns SeedPasswordHash, or a fresh hash of password when one is
// given.
func SeedHash(password string) (string, error) {
	if password == "" {
		return SeedPasswordHash, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), seedHashCost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	return string(hash), nil
}
