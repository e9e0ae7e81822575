package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// LoginAttemptRepository stores consecutive login failures per email
type LoginAttemptRepository interface {
	Get(ctx context.Context, email string) (*models.LoginAttemptState, error)
	Save(ctx context.Context, state *models.LoginAttemptState) error
	Delete(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// LoginGuardConfig holds the lockout policy
type LoginGuardConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// LoginGuard counts failed logins and enforces temporary lockouts
type LoginGuard struct {
	mu     sync.Mutex
	repo   LoginAttemptRepository
	config LoginGuardConfig
	clock  clock.Clock
	logger *slog.Logger
}

// NewLoginGuard creates a new LoginGuard
func NewLoginGuard(repo LoginAttemptRepository, config LoginGuardConfig, clk clock.Clock, logger *slog.Logger) *LoginGuard {
	return &LoginGuard{
		repo:   repo,
		config: config,
		clock:  clk,
		logger: logger,
	}
}

// loadLocked returns the live state for email, discarding lockouts that have run out.
func (g *LoginGuard) loadLocked(ctx context.Context, email string) (*models.LoginAttemptState, error) {
	state, err := g.repo.Get(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load login attempts: %w", err)
	}

	if state.LockedUntil != nil && !state.IsLocked(g.clock.Now()) {
		if err := g.repo.Delete(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to clear expired lockout: %w", err)
		}
		return nil, nil
	}
	return state, nil
}

// CheckLoginAttempts fails with a LockoutError while email is locked out
func (g *LoginGuard) CheckLoginAttempts(ctx context.Context, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.loadLocked(ctx, email)
	if err != nil {
		return err
	}
	if state != nil && state.IsLocked(g.clock.Now()) {
		return &models.LockoutError{RemainingMinutes: ceilMinutes(state.LockedUntil.Sub(g.clock.Now()))}
	}
	return nil
}

// TrackFailedAttempt records a failure. Reaching the threshold locks the email
// and returns a LockoutError; below it the caller reports invalid credentials.
func (g *LoginGuard) TrackFailedAttempt(ctx context.Context, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	state, err := g.loadLocked(ctx, email)
	if err != nil {
		return err
	}
	if state == nil {
		state = &models.LoginAttemptState{Email: email}
	}
	if state.IsLocked(now) {
		return &models.LockoutError{RemainingMinutes: ceilMinutes(state.LockedUntil.Sub(now))}
	}

	state.FailedCount++
	if state.FailedCount >= g.config.MaxFailedAttempts {
		lockedUntil := now.Add(g.config.LockoutDuration)
		state.LockedUntil = &lockedUntil
	}

	if err := g.repo.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save login attempts: %w", err)
	}

	if state.LockedUntil != nil {
		g.logger.Warn("account locked after failed logins",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Int("failed_attempts", state.FailedCount),
			slog.Time("locked_until", *state.LockedUntil))
		return &models.LockoutError{RemainingMinutes: ceilMinutes(g.config.LockoutDuration)}
	}
	return nil
}

// ResetLoginAttempts clears everything tracked for email
func (g *LoginGuard) ResetLoginAttempts(ctx context.Context, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.repo.Delete(ctx, email); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

// CleanupExpired drops lockouts that have ended
func (g *LoginGuard) CleanupExpired(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.repo.DeleteExpired(ctx, g.clock.Now())
}
