package models

import (
	"time"
)

// User is a credential store record. PasswordHash and the MFA secret never leave
// the service layer; sessions only ever carry a SessionUser.
type User struct {
	ID                 string
	Email              string
	Name               string
	PasswordHash       string
	Role               Role
	MFAEnabled         bool
	MFASecretEncrypted []byte // AES-256-GCM encrypted TOTP secret
	MFASecretNonce     []byte
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastActiveAt       *time.Time
	PasswordChangedAt  *time.Time
}

// SessionUser is the public-safe projection persisted with a session.
type SessionUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	MFAEnabled   bool       `json:"mfa_enabled"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// Public strips credentials and MFA material from the record.
func (u *User) Public() *SessionUser {
	return &SessionUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		MFAEnabled:   u.MFAEnabled,
		CreatedAt:    u.CreatedAt,
		LastActiveAt: u.LastActiveAt,
	}
}

// HasMFASecret reports whether a TOTP secret has been provisioned.
func (u *User) HasMFASecret() bool {
	return len(u.MFASecretEncrypted) > 0 && len(u.MFASecretNonce) > 0
}
