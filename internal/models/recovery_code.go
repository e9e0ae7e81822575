package models

import (
	"time"
)

// RecoveryCode is a one-time numeric code proving control of an email address.
// Used flips on a successful verify; Redeemed flips once the code has been spent
// on a password reset or invalidated.
type RecoveryCode struct {
	Email             string
	Code              string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
	Attempts          int
	Used              bool
	VerifiedAt        *time.Time
	Redeemed          bool
}

// IsExpired checks if the code is past its deadline
func (c *RecoveryCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CanResend checks if the resend cooldown has elapsed
func (c *RecoveryCode) CanResend(now time.Time) bool {
	return !now.Before(c.ResendAvailableAt)
}

// ResetGrantValid reports whether a verified code can still authorize a password reset.
func (c *RecoveryCode) ResetGrantValid(code string, now time.Time) bool {
	return c.Used && c.VerifiedAt != nil && !c.Redeemed && c.Code == code && !c.IsExpired(now)
}

// RecoveryCodeIssued is returned to the caller when a code is sent.
type RecoveryCodeIssued struct {
	Email             string    `json:"email"`
	Code              string    `json:"code,omitempty"` // only surfaced outside production
	ExpiresAt         time.Time `json:"expires_at"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
}
