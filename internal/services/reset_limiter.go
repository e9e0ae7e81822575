package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
)

// ResetRequestRepository stores password reset request counters per email
type ResetRequestRepository interface {
	Get(ctx context.Context, email string) (*models.PasswordResetRequest, error)
	Save(ctx context.Context, req *models.PasswordResetRequest) error
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// ResetLimiter caps password reset requests per email inside a rolling window
// measured from the most recent request.
type ResetLimiter struct {
	mu     sync.Mutex
	repo   ResetRequestRepository
	clock  clock.Clock
	limit  int
	window time.Duration
}

func NewResetLimiter(repo ResetRequestRepository, limit int, window time.Duration, clk clock.Clock) *ResetLimiter {
	return &ResetLimiter{
		repo:   repo,
		clock:  clk,
		limit:  limit,
		window: window,
	}
}

// Allow records a request for email or fails with a RateLimitError.
func (l *ResetLimiter) Allow(ctx context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	req, err := l.repo.Get(ctx, email)
	switch {
	case errors.Is(err, models.ErrNotFound):
		req = &models.PasswordResetRequest{Email: email}
	case err != nil:
		return fmt.Errorf("failed to load reset requests: %w", err)
	case req.WindowElapsed(now, l.window):
		req.Count = 0
	case req.Count >= l.limit:
		remaining := req.LastRequestAt.Add(l.window).Sub(now)
		return &models.RateLimitError{RemainingHours: ceilHours(remaining)}
	}

	req.Count++
	req.LastRequestAt = now
	if err := l.repo.Save(ctx, req); err != nil {
		return fmt.Errorf("failed to save reset requests: %w", err)
	}
	return nil
}

// CleanupStale drops counters whose window has passed
func (l *ResetLimiter) CleanupStale(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.repo.DeleteStale(ctx, l.clock.Now().Add(-l.window))
}
