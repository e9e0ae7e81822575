package models

import "time"

// PasswordResetRequest counts reset requests for an email inside a rolling window.
type PasswordResetRequest struct {
	Email         string
	Count         int
	LastRequestAt time.Time
}

// WindowElapsed reports whether the counting window has passed since the last request.
func (r *PasswordResetRequest) WindowElapsed(now time.Time, window time.Duration) bool {
	return !now.Before(r.LastRequestAt.Add(window))
}
