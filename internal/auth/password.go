package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Staff accounts are few and log in rarely, so the default cost is plenty.
const bcryptCost = bcrypt.DefaultCost

// HashPassword hashes a staff password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword checks a plaintext staff password against its stored hash.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
