package models

import "time"

// Client storage keys. Values are JSON encoded.
const (
	StorageKeyCurrentUser      = "currentUser"
	StorageKeySessionExpiresAt = "sessionExpiresAt"
	StorageKeyIsLoggedIn       = "isLoggedIn"
)

// Session is an authenticated grant with an absolute deadline.
type Session struct {
	User      *SessionUser `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// IsValid reports whether the session is still usable at now.
func (s *Session) IsValid(now time.Time) bool {
	return s != nil && s.User != nil && now.Before(s.ExpiresAt)
}

// ActivitySignal is a user interaction that renews a live session.
type ActivitySignal string

const (
	SignalPointerDown ActivitySignal = "pointerdown"
	SignalKeyDown     ActivitySignal = "keydown"
	SignalScroll      ActivitySignal = "scroll"
	SignalTouchStart  ActivitySignal = "touchstart"
)

// TrackedSignals is the set of interactions that count as activity.
var TrackedSignals = map[ActivitySignal]bool{
	SignalPointerDown: true,
	SignalKeyDown:     true,
	SignalScroll:      true,
	SignalTouchStart:  true,
}
