package models

import "time"

// LoginAttemptState tracks consecutive failed logins for one email.
// LockedUntil is only set once FailedCount reaches the lockout threshold.
type LoginAttemptState struct {
	Email       string
	FailedCount int
	LockedUntil *time.Time
}

// IsLocked reports whether a lockout is active at now.
func (s *LoginAttemptState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}
