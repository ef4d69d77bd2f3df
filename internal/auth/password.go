// Package auth hashes passwords and issues the bearer tokens that carry
// an account's id and capability claims.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/ledgerly/internal/domain"
)

const (
	MinPasswordLength = 8

	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72

	bcryptCost = 12
)

var ErrPasswordMismatch = errors.New("password does not match")

// ValidatePassword reports length problems as a field error on "password".
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return domain.NewValidationError("auth.password", "password",
			fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordLength:
		return domain.NewValidationError("auth.password", "password",
			fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

// HashPassword generates a bcrypt hash of a validated password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	return hashWithCost(password, bcryptCost)
}

func hashWithCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks if the provided password matches the hash
func VerifyPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}
