package handlers

import (
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
)

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=PATIENT PROFESSIONAL patient professional"`
}

// MFACodeRequest carries a 6 digit authenticator code
type MFACodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type ActivityRequest struct {
	Signal string `json:"signal" validate:"required,max=32"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password" validate:"required,max=72"`
}

type RecoveryEmailRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type RecoveryVerifyRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type RecoveryResetRequest struct {
	Email       string `json:"email" validate:"required,max=254"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

// Response DTOs

// SessionResponse describes the client's authentication state
type SessionResponse struct {
	Authenticated bool                `json:"authenticated"`
	User          *models.SessionUser `json:"user,omitempty"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
}

func newSessionResponse(session *models.Session) SessionResponse {
	if session == nil {
		return SessionResponse{}
	}
	expiresAt := session.ExpiresAt
	return SessionResponse{Authenticated: true, User: session.User, ExpiresAt: &expiresAt}
}

type LoginResponse struct {
	MFARequired bool `json:"mfa_required"`
	SessionResponse
}

// RecoveryResponse acknowledges a code request. Code is only filled outside production.
type RecoveryResponse struct {
	Message           string     `json:"message"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ResendAvailableAt *time.Time `json:"resend_available_at,omitempty"`
	Code              string     `json:"code,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// MFAEnrollResponse holds what an authenticator app needs
type MFAEnrollResponse struct {
	Secret          string `json:"secret"`           // base32, for manual entry
	ProvisioningURL string `json:"provisioning_url"` // otpauth:// URI
	QRCode          string `json:"qr_code"`          // data URL
}

type DashboardResponse struct {
	Area string              `json:"area"`
	User *models.SessionUser `json:"user"`
}
