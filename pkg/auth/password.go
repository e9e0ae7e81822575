package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinPasswordLen    = 6
	MaxPasswordLen    = 72 // bcrypt ignores input past 72 bytes
)

// ErrPasswordTooShort and ErrPasswordTooLong are returned by ValidatePassword.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
)

// PasswordLengthError carries the bound that was violated.
type PasswordLengthError struct {
	Err   error
	Bound int
}

func (e *PasswordLengthError) Error() string {
	return fmt.Sprintf("%s (limit %d)", e.Err, e.Bound)
}

func (e *PasswordLengthError) Unwrap() error { return e.Err }

// HashPassword hashes with DefaultBcryptCost.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultBcryptCost)
}

func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the length policy. minLen <= 0 falls back to MinPasswordLen.
func ValidatePassword(password string, minLen int) error {
	if minLen <= 0 {
		minLen = MinPasswordLen
	}
	if len([]rune(password)) < minLen {
		return &PasswordLengthError{Err: ErrPasswordTooShort, Bound: minLen}
	}
	if len(password) > MaxPasswordLen {
		return &PasswordLengthError{Err: ErrPasswordTooLong, Bound: MaxPasswordLen}
	}
	return nil
}
