package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors
	ErrInvalidFormat      = errors.New("invalid email format")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrUnauthenticated    = errors.New("no authenticated user")
	ErrWeakPassword       = errors.New("password is too short")
	ErrRateLimited        = errors.New("too many password reset requests")

	// Recovery code errors
	ErrCodeNotFound      = errors.New("recovery code not found")
	ErrCodeAlreadyUsed   = errors.New("recovery code already used")
	ErrCodeExpired       = errors.New("recovery code expired")
	ErrAttemptsExhausted = errors.New("recovery code attempts exhausted")
	ErrIncorrectCode     = errors.New("incorrect recovery code")
	ErrResendCooldown    = errors.New("recovery code resend not yet allowed")
)

// LockoutError reports an active login lockout.
type LockoutError struct {
	RemainingMinutes int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("%s: try again in %d minute(s)", ErrAccountLocked, e.RemainingMinutes)
}

func (e *LockoutError) Unwrap() error { return ErrAccountLocked }

// RateLimitError reports an exhausted password reset allowance.
type RateLimitError struct {
	RemainingHours int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: try again in %d hour(s)", ErrRateLimited, e.RemainingHours)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// IncorrectCodeError reports a wrong recovery code and how many tries are left.
type IncorrectCodeError struct {
	RemainingAttempts int
}

func (e *IncorrectCodeError) Error() string {
	return fmt.Sprintf("%s: %d attempt(s) remaining", ErrIncorrectCode, e.RemainingAttempts)
}

func (e *IncorrectCodeError) Unwrap() error { return ErrIncorrectCode }

// CooldownError reports how long until a new recovery code may be requested.
type CooldownError struct {
	RemainingSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: wait %d second(s)", ErrResendCooldown, e.RemainingSeconds)
}

func (e *CooldownError) Unwrap() error { return ErrResendCooldown }
