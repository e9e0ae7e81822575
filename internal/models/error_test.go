package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{"lockout", &LockoutError{RemainingMinutes: 12}, ErrAccountLocked, "try again in 12 minute(s)"},
		{"rate limit", &RateLimitError{RemainingHours: 23}, ErrRateLimited, "try again in 23 hour(s)"},
		{"incorrect code", &IncorrectCodeError{RemainingAttempts: 4}, ErrIncorrectCode, "4 attempt(s) remaining"},
		{"cooldown", &CooldownError{RemainingSeconds: 30}, ErrResendCooldown, "wait 30 second(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("login: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Contains(t, tt.err.Error(), tt.message)
		})
	}
}

func TestLockoutErrorAs(t *testing.T) {
	err := fmt.Errorf("guard: %w", &LockoutError{RemainingMinutes: 30})

	var lockout *LockoutError
	assert.True(t, errors.As(err, &lockout))
	assert.Equal(t, 30, lockout.RemainingMinutes)
}

func TestRecoveryCode_ResetGrantValid(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	verified := now

	code := RecoveryCode{
		Code:       "482913",
		ExpiresAt:  now.Add(15 * time.Minute),
		Used:       true,
		VerifiedAt: &verified,
	}
	assert.True(t, code.ResetGrantValid("482913", now))
	assert.False(t, code.ResetGrantValid("111111", now))
	assert.False(t, code.ResetGrantValid("482913", now.Add(16*time.Minute)))

	code.Redeemed = true
	assert.False(t, code.ResetGrantValid("482913", now))

	unverified := RecoveryCode{Code: "482913", ExpiresAt: now.Add(15 * time.Minute)}
	assert.False(t, unverified.ResetGrantValid("482913", now))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" professional ")
	assert.True(t, ok)
	assert.Equal(t, RoleProfessional, role)

	_, ok = ParseRole("RECEPTIONIST")
	assert.False(t, ok)
}
