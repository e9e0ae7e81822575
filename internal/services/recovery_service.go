package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
	pkgauth "github.com/BradenHooton/clinicauth/pkg/auth"
	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// RecoveryCodeRepository stores the current recovery code per email
type RecoveryCodeRepository interface {
	Get(ctx context.Context, email string) (*models.RecoveryCode, error)
	Save(ctx context.Context, code *models.RecoveryCode) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// CodeSender delivers a recovery code to its owner
type CodeSender interface {
	SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// Latency is a simulated network round trip at an auth suspension point
type Latency interface {
	Wait(ctx context.Context) error
}

type noLatency struct{}

func (noLatency) Wait(ctx context.Context) error { return ctx.Err() }

// RecoveryConfig holds the recovery code policy
type RecoveryConfig struct {
	CodeTTL           time.Duration
	MaxAttempts       int
	ResendCooldown    time.Duration
	MinPasswordLength int
	BcryptCost        int
}

// RecoveryService issues, verifies and redeems one-time recovery codes.
// Every state transition on an entry happens under one lock, so concurrent
// verifies of the same code count monotonically.
type RecoveryService struct {
	mu          sync.Mutex
	codes       RecoveryCodeRepository
	users       UserRepository
	limiter     *ResetLimiter
	sender      CodeSender
	latency     Latency
	clock       clock.Clock
	config      RecoveryConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// RecoveryDependencies groups the collaborators of a RecoveryService
type RecoveryDependencies struct {
	Codes       RecoveryCodeRepository
	Users       UserRepository
	Limiter     *ResetLimiter
	Sender      CodeSender
	Latency     Latency
	Clock       clock.Clock
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

func NewRecoveryService(deps RecoveryDependencies, config RecoveryConfig) *RecoveryService {
	latency := deps.Latency
	if latency == nil {
		latency = noLatency{}
	}
	return &RecoveryService{
		codes:       deps.Codes,
		users:       deps.Users,
		limiter:     deps.Limiter,
		sender:      deps.Sender,
		latency:     latency,
		clock:       deps.Clock,
		config:      config,
		logger:      deps.Logger,
		auditLogger: deps.AuditLogger,
	}
}

// generateCode returns a uniformly random code in [100000, 999999]
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate recovery code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// SendRecoveryCode issues a fresh code for email, replacing any previous one,
// and delivers it. The issued code is returned to the caller.
func (s *RecoveryService) SendRecoveryCode(ctx context.Context, email string) (*models.RecoveryCodeIssued, error) {
	return s.issue(ctx, email, false)
}

// ResendRecoveryCode replaces an outstanding code once the resend cooldown has
// elapsed. Without a prior code it fails with ErrCodeNotFound; first requests
// go through RequestPasswordReset.
func (s *RecoveryService) ResendRecoveryCode(ctx context.Context, email string) (*models.RecoveryCodeIssued, error) {
	return s.issue(ctx, email, true)
}

func (s *RecoveryService) issue(ctx context.Context, email string, enforceCooldown bool) (*models.RecoveryCodeIssued, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if err := s.latency.Wait(ctx); err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		s.logger.Error("recovery code generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.mu.Lock()
	now := s.clock.Now()
	if enforceCooldown {
		existing, err := s.codes.Get(ctx, email)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to load recovery code: %w", err)
		}
		if existing == nil {
			s.mu.Unlock()
			return nil, models.ErrCodeNotFound
		}
		if !existing.CanResend(now) {
			s.mu.Unlock()
			return nil, &models.CooldownError{RemainingSeconds: ceilSeconds(existing.ResendAvailableAt.Sub(now))}
		}
	}

	entry := &models.RecoveryCode{
		Email:             email,
		Code:              code,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.config.CodeTTL),
		ResendAvailableAt: now.Add(s.config.ResendCooldown),
	}
	if err := s.codes.Save(ctx, entry); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to save recovery code: %w", err)
	}
	s.mu.Unlock()

	if err := s.sender.SendRecoveryCode(ctx, email, code, entry.ExpiresAt); err != nil {
		s.logger.Error("failed to deliver recovery code",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		s.releaseCooldown(ctx, email, code)
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogRecoveryEvent(pkglogger.AuditEvent{
		EventType: "recovery_code_sent",
		Email:     email,
		Success:   true,
	})

	return &models.RecoveryCodeIssued{
		Email:             email,
		Code:              code,
		ExpiresAt:         entry.ExpiresAt,
		ResendAvailableAt: entry.ResendAvailableAt,
	}, nil
}

// releaseCooldown lets the user ask again right away after a failed delivery.
func (s *RecoveryService) releaseCooldown(ctx context.Context, email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.codes.Get(ctx, email)
	if err != nil || entry.Code != code {
		return
	}
	entry.ResendAvailableAt = s.clock.Now()
	if err := s.codes.Save(ctx, entry); err != nil {
		s.logger.Error("failed to release recovery cooldown", slog.Any("error", err))
	}
}

// VerifyRecoveryCode checks code against the entry for email. Checks run in
// order: missing, used, expired, exhausted. Past those, the attempt is counted
// whatever the outcome, so a correct code on the last permitted attempt succeeds.
func (s *RecoveryService) VerifyRecoveryCode(ctx context.Context, email, code string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	if err := s.latency.Wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	_, err = s.verifyLocked(ctx, email, code)
	s.mu.Unlock()

	s.auditVerify(email, err)
	return err
}

func (s *RecoveryService) verifyLocked(ctx context.Context, email, code string) (*models.RecoveryCode, error) {
	entry, err := s.codes.Get(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recovery code: %w", err)
	}

	now := s.clock.Now()
	switch {
	case entry.Used:
		return nil, models.ErrCodeAlreadyUsed
	case entry.IsExpired(now):
		return nil, models.ErrCodeExpired
	case entry.Attempts >= s.config.MaxAttempts:
		return nil, models.ErrAttemptsExhausted
	}

	entry.Attempts++
	matched := subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) == 1
	if matched {
		entry.Used = true
		entry.VerifiedAt = &now
	}

	if err := s.codes.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save recovery code: %w", err)
	}

	if !matched {
		return nil, &models.IncorrectCodeError{RemainingAttempts: s.config.MaxAttempts - entry.Attempts}
	}
	return entry, nil
}

func (s *RecoveryService) auditVerify(email string, err error) {
	event := pkglogger.AuditEvent{
		EventType: "recovery_code_verified",
		Email:     email,
		Success:   err == nil,
	}
	if err != nil {
		event.FailureReason = err.Error()
	}
	s.auditLogger.LogRecoveryEvent(event)
}

// ResetPasswordWithCode sets a new password for email on the strength of
// code. A code verified in an earlier step is honoured once without counting
// another attempt; otherwise the code is verified here.
func (s *RecoveryService) ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	if err := s.latency.Wait(ctx); err != nil {
		return err
	}

	if err := s.claimResetGrant(ctx, email, code); err != nil {
		return err
	}

	if err := checkPassword(newPassword, s.config.MinPasswordLength); err != nil {
		s.restoreResetGrant(ctx, email, code)
		return err
	}

	if err := s.updatePassword(ctx, email, newPassword); err != nil {
		s.restoreResetGrant(ctx, email, code)
		return err
	}

	s.auditLogger.LogPasswordChange(pkglogger.AuditEvent{
		EventType: "password_reset",
		Email:     email,
		Success:   true,
	})
	s.logger.Info("password reset with recovery code", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

// claimResetGrant verifies (if needed) and redeems the code in one locked step.
func (s *RecoveryService) claimResetGrant(ctx context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.codes.Get(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to load recovery code: %w", err)
	}
	if entry == nil || !entry.ResetGrantValid(code, s.clock.Now()) {
		entry, err = s.verifyLocked(ctx, email, code)
		if err != nil {
			s.auditVerify(email, err)
			return err
		}
	}

	entry.Redeemed = true
	if err := s.codes.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to save recovery code: %w", err)
	}
	return nil
}

// restoreResetGrant hands a verified code back after a failed reset so the
// user can pick a better password without a new code.
func (s *RecoveryService) restoreResetGrant(ctx context.Context, email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.codes.Get(ctx, email)
	if err != nil || entry.Code != code || !entry.Used {
		return
	}
	entry.Redeemed = false
	if err := s.codes.Save(ctx, entry); err != nil {
		s.logger.Error("failed to restore reset grant", slog.Any("error", err))
	}
}

func (s *RecoveryService) updatePassword(ctx context.Context, email, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	hash, err := pkgauth.HashPasswordWithCost(newPassword, s.config.BcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := s.clock.Now()
	user.PasswordHash = hash
	user.PasswordChangedAt = &now
	if _, err := s.users.Update(ctx, user); err != nil {
		s.logger.Error("failed to store new password", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// InvalidateCode retires the code for email without checking it. Missing codes are ignored.
func (s *RecoveryService) InvalidateCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.codes.Get(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load recovery code: %w", err)
	}

	entry.Used = true
	entry.Redeemed = true
	if err := s.codes.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to save recovery code: %w", err)
	}
	return nil
}

// RequestPasswordReset is the entry point of the recovery flow: it enforces the
// per-email request cap and sends a code to known accounts. Unknown emails
// return ErrNotFound after counting against the cap.
func (s *RecoveryService) RequestPasswordReset(ctx context.Context, email string) (*models.RecoveryCodeIssued, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Allow(ctx, email); err != nil {
		s.auditLogger.LogRecoveryEvent(pkglogger.AuditEvent{
			EventType:     "password_reset_requested",
			Email:         email,
			Success:       false,
			FailureReason: "rate_limited",
		})
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown account")
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.SendRecoveryCode(ctx, email)
}

// CleanupExpired drops dead codes and stale reset counters.
func (s *RecoveryService) CleanupExpired(ctx context.Context) (codes int, resets int, err error) {
	s.mu.Lock()
	codes, err = s.codes.DeleteExpired(ctx, s.clock.Now())
	s.mu.Unlock()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to clean recovery codes: %w", err)
	}

	if s.limiter != nil {
		resets, err = s.limiter.CleanupStale(ctx)
		if err != nil {
			return codes, 0, fmt.Errorf("failed to clean reset requests: %w", err)
		}
	}
	return codes, resets, nil
}
