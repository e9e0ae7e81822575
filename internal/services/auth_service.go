package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/auth"
	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
	pkgauth "github.com/BradenHooton/clinicauth/pkg/auth"
	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// UserRepository is the credential store
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
}

// TOTPProvider enrolls and checks authenticator app codes
type TOTPProvider interface {
	Enroll(accountName string) (*auth.TOTPEnrollment, error)
	DecryptSecret(encrypted, nonce []byte) (string, error)
	ValidateTOTP(secret, code string, at time.Time) (bool, error)
}

// AuthConfig holds the flow policy shared by every client
type AuthConfig struct {
	MinPasswordLength int
	BcryptCost        int
	MFAPendingTTL     time.Duration
	MFAMaxAttempts    int
}

// AuthDependencies are the process-wide collaborators of every AuthService
type AuthDependencies struct {
	Users       UserRepository
	Guard       *LoginGuard
	TOTP        TOTPProvider
	Clock       clock.Clock
	Latency     Latency
	Config      AuthConfig
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

// LoginResult is the outcome of a password check. MFARequired means no
// session exists yet and VerifyMFA must follow.
type LoginResult struct {
	MFARequired bool
	Session     *models.Session
}

// RegisterInput carries a self-service sign-up
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

type pendingLogin struct {
	userID    string
	email     string
	expiresAt time.Time
	failures  int
}

// AuthService runs the login, registration and logout flows for one client.
type AuthService struct {
	deps     AuthDependencies
	sessions *SessionManager
	clientID string

	mu      sync.Mutex
	pending *pendingLogin
}

// NewAuthService creates a new AuthService bound to a client's session manager
func NewAuthService(deps AuthDependencies, sessions *SessionManager, clientID string) *AuthService {
	if deps.Latency == nil {
		deps.Latency = noLatency{}
	}
	return &AuthService{
		deps:     deps,
		sessions: sessions,
		clientID: clientID,
	}
}

// Login checks credentials. Users with MFA get a pending login instead of a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Latency.Wait(ctx); err != nil {
		return nil, err
	}

	if err := s.deps.Guard.CheckLoginAttempts(ctx, email); err != nil {
		s.auditLogin(email, "", false, "account_locked")
		return nil, err
	}

	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.deps.Logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user == nil || pkgauth.ComparePassword(user.PasswordHash, password) != nil {
		s.deps.Logger.Info("login failed: invalid credentials", slog.String("client_id", s.clientID))
		s.auditLogin(email, "", false, "invalid_credentials")
		if err := s.deps.Guard.TrackFailedAttempt(ctx, email); err != nil {
			return nil, err
		}
		return nil, models.ErrInvalidCredentials
	}

	if err := s.deps.Guard.ResetLoginAttempts(ctx, email); err != nil {
		s.deps.Logger.Error("failed to reset login attempts", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	if user.MFAEnabled {
		s.mu.Lock()
		s.pending = &pendingLogin{
			userID:    user.ID,
			email:     user.Email,
			expiresAt: s.deps.Clock.Now().Add(s.deps.Config.MFAPendingTTL),
		}
		s.mu.Unlock()

		s.deps.AuditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "login_mfa_challenge",
			Email:     email,
			UserID:    user.ID,
			ClientID:  s.clientID,
			Success:   true,
		})
		return &LoginResult{MFARequired: true}, nil
	}

	session, err := s.finalize(ctx, user)
	if err != nil {
		return nil, err
	}

	s.auditLogin(email, user.ID, true, "")
	return &LoginResult{Session: session}, nil
}

// VerifyMFA completes a pending login. It reports false for a wrong code, a
// missing or stale pending login, or any internal failure; the pending login
// survives wrong codes up to the configured limit.
func (s *AuthService) VerifyMFA(ctx context.Context, code string) bool {
	if err := s.deps.Latency.Wait(ctx); err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending
	if p == nil {
		return false
	}

	now := s.deps.Clock.Now()
	if !now.Before(p.expiresAt) {
		s.pending = nil
		s.auditLogin(p.email, p.userID, false, "mfa_expired")
		return false
	}

	user, err := s.deps.Users.GetByID(ctx, p.userID)
	if err != nil {
		s.deps.Logger.Error("failed to load user for MFA", slog.String("user_id", p.userID), slog.Any("error", err))
		return false
	}

	if !s.checkTOTP(user, code, now) {
		p.failures++
		if p.failures >= s.deps.Config.MFAMaxAttempts {
			s.pending = nil
		}
		s.auditLogin(p.email, p.userID, false, "mfa_invalid_code")
		return false
	}

	if _, err := s.finalize(ctx, user); err != nil {
		return false
	}

	s.pending = nil
	s.auditLogin(p.email, p.userID, true, "")
	return true
}

// MFAPending reports whether a login is waiting for its second factor.
func (s *AuthService) MFAPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil && s.deps.Clock.Now().Before(s.pending.expiresAt)
}

func (s *AuthService) checkTOTP(user *models.User, code string, at time.Time) bool {
	if !user.HasMFASecret() || s.deps.TOTP == nil {
		s.deps.Logger.Warn("MFA enabled without a provisioned secret", slog.String("user_id", user.ID))
		return false
	}

	secret, err := s.deps.TOTP.DecryptSecret(user.MFASecretEncrypted, user.MFASecretNonce)
	if err != nil {
		s.deps.Logger.Error("failed to decrypt MFA secret", slog.String("user_id", user.ID), slog.Any("error", err))
		return false
	}

	valid, err := s.deps.TOTP.ValidateTOTP(secret, strings.TrimSpace(code), at)
	if err != nil {
		s.deps.Logger.Warn("TOTP validation error", slog.String("user_id", user.ID), slog.Any("error", err))
		return false
	}
	return valid
}

// finalize records activity and hands the public projection to the session manager.
func (s *AuthService) finalize(ctx context.Context, user *models.User) (*models.Session, error) {
	now := s.deps.Clock.Now()
	user.LastActiveAt = &now
	if updated, err := s.deps.Users.Update(ctx, user); err != nil {
		s.deps.Logger.Warn("failed to record last activity", slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user = updated
	}

	session, err := s.sessions.Establish(ctx, user.Public())
	if err != nil {
		s.deps.Logger.Error("failed to establish session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.deps.AuditLogger.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "session_established",
		UserID:    user.ID,
		ClientID:  s.clientID,
		Success:   true,
	})
	return session, nil
}

// Register creates a patient or professional account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrBadRequest)
	}

	if err := checkPassword(in.Password, s.deps.Config.MinPasswordLength); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RolePatient
	}
	if !models.SelfServiceRoles[role] {
		return nil, fmt.Errorf("%w: role %s cannot be self-assigned", models.ErrBadRequest, role)
	}

	if err := s.deps.Latency.Wait(ctx); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPasswordWithCost(in.Password, s.deps.Config.BcryptCost)
	if err != nil {
		s.deps.Logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.deps.Users.Create(ctx, &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.deps.Clock.Now(),
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.auditRegister(email, "", false, "email_taken")
			return nil, models.ErrConflict
		}
		s.deps.Logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.deps.Logger.Info("user registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	s.auditRegister(email, user.ID, true, "")

	return s.finalize(ctx, user)
}

// Logout ends the session. Storage failures are logged and otherwise ignored.
func (s *AuthService) Logout(ctx context.Context) {
	s.clearPending()

	current, _ := s.sessions.Current(ctx)
	if err := s.sessions.ClearSession(ctx); err != nil {
		s.deps.Logger.Warn("failed to clear session storage on logout",
			slog.String("client_id", s.clientID), slog.Any("error", err))
	}

	event := pkglogger.AuditEvent{EventType: "logout", ClientID: s.clientID, Success: true}
	if current != nil {
		event.UserID = current.User.ID
	}
	s.deps.AuditLogger.LogSessionEvent(event)
}

// LogoutAll erases all persisted session material for the client and reports failure.
func (s *AuthService) LogoutAll(ctx context.Context) error {
	s.clearPending()

	if err := s.sessions.LogoutAllSessions(ctx); err != nil {
		s.deps.Logger.Error("failed to log out all sessions", slog.String("client_id", s.clientID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.deps.AuditLogger.LogSessionEvent(pkglogger.AuditEvent{EventType: "logout_all", ClientID: s.clientID, Success: true})
	return nil
}

func (s *AuthService) clearPending() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// CurrentSession returns the live session or nil.
func (s *AuthService) CurrentSession(ctx context.Context) (*models.Session, error) {
	session, err := s.sessions.Current(ctx)
	if err != nil {
		s.deps.Logger.Error("failed to read session", slog.String("client_id", s.clientID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return session, nil
}

// CurrentRole is the role of the signed-in user, "" when signed out.
func (s *AuthService) CurrentRole(ctx context.Context) (models.Role, error) {
	session, err := s.CurrentSession(ctx)
	if err != nil || session == nil {
		return "", err
	}
	return session.User.Role, nil
}

// RecordActivity renews the session for a tracked signal and returns the
// session afterwards (nil when signed out).
func (s *AuthService) RecordActivity(ctx context.Context, signal models.ActivitySignal) (*models.Session, error) {
	if _, err := s.sessions.RecordActivity(ctx, signal); err != nil {
		s.deps.Logger.Error("failed to renew session", slog.String("client_id", s.clientID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return s.CurrentSession(ctx)
}

// requireUser loads the full record of the signed-in user.
func (s *AuthService) requireUser(ctx context.Context) (*models.User, error) {
	session, err := s.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrUnauthenticated
	}

	user, err := s.deps.Users.GetByID(ctx, session.User.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		s.deps.Logger.Error("failed to load session user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// ChangePassword replaces the signed-in user's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	user, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	if err := s.deps.Latency.Wait(ctx); err != nil {
		return err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.deps.AuditLogger.LogPasswordChange(pkglogger.AuditEvent{
			EventType:     "password_change",
			UserID:        user.ID,
			ClientID:      s.clientID,
			Success:       false,
			FailureReason: "invalid_current_password",
		})
		return models.ErrInvalidCredentials
	}

	if err := checkPassword(newPassword, s.deps.Config.MinPasswordLength); err != nil {
		return err
	}

	hash, err := pkgauth.HashPasswordWithCost(newPassword, s.deps.Config.BcryptCost)
	if err != nil {
		s.deps.Logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := s.deps.Clock.Now()
	user.PasswordHash = hash
	user.PasswordChangedAt = &now
	if _, err := s.deps.Users.Update(ctx, user); err != nil {
		s.deps.Logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.deps.AuditLogger.LogPasswordChange(pkglogger.AuditEvent{
		EventType: "password_change",
		UserID:    user.ID,
		ClientID:  s.clientID,
		Success:   true,
	})
	return nil
}

// EnrollMFA provisions a TOTP secret for the signed-in user. MFA stays off
// until ConfirmMFA proves the authenticator works.
func (s *AuthService) EnrollMFA(ctx context.Context) (*auth.TOTPEnrollment, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, models.ErrConflict
	}

	enrollment, err := s.deps.TOTP.Enroll(user.Email)
	if err != nil {
		s.deps.Logger.Error("failed to generate MFA secret", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user.MFASecretEncrypted = enrollment.Encrypted
	user.MFASecretNonce = enrollment.Nonce
	if _, err := s.deps.Users.Update(ctx, user); err != nil {
		s.deps.Logger.Error("failed to store MFA secret", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.deps.Logger.Info("MFA enrollment started", slog.String("user_id", user.ID))
	return enrollment, nil
}

// ConfirmMFA turns MFA on once code matches the enrolled secret.
func (s *AuthService) ConfirmMFA(ctx context.Context, code string) error {
	user, err := s.requireUser(ctx)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		return models.ErrConflict
	}
	if !user.HasMFASecret() {
		return fmt.Errorf("%w: MFA enrollment not started", models.ErrBadRequest)
	}

	if !s.checkTOTP(user, code, s.deps.Clock.Now()) {
		return models.ErrIncorrectCode
	}

	user.MFAEnabled = true
	updated, err := s.deps.Users.Update(ctx, user)
	if err != nil {
		s.deps.Logger.Error("failed to enable MFA", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sessions.UpdateUser(ctx, updated.Public()); err != nil {
		s.deps.Logger.Warn("failed to refresh session after MFA enrollment", slog.Any("error", err))
	}

	s.deps.AuditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "mfa_enabled",
		UserID:    user.ID,
		ClientID:  s.clientID,
		Success:   true,
	})
	return nil
}

// Detach stops the session timer without logging out.
func (s *AuthService) Detach() {
	s.sessions.Detach()
}

func (s *AuthService) auditLogin(email, userID string, success bool, reason string) {
	s.deps.AuditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login",
		Email:         email,
		UserID:        userID,
		ClientID:      s.clientID,
		Success:       success,
		FailureReason: reason,
	})
}

func (s *AuthService) auditRegister(email, userID string, success bool, reason string) {
	s.deps.AuditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "register",
		Email:         email,
		UserID:        userID,
		ClientID:      s.clientID,
		Success:       success,
		FailureReason: reason,
	})
}
