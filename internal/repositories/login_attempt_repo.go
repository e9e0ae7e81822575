package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
)

// LoginAttemptRepository keeps per-email failure state for the life of the process.
type LoginAttemptRepository struct {
	mu     sync.Mutex
	states map[string]models.LoginAttemptState
}

func NewLoginAttemptRepository() *LoginAttemptRepository {
	return &LoginAttemptRepository{states: make(map[string]models.LoginAttemptState)}
}

func (r *LoginAttemptRepository) Get(ctx context.Context, email string) (*models.LoginAttemptState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	if state.LockedUntil != nil {
		t := *state.LockedUntil
		state.LockedUntil = &t
	}
	return &state, nil
}

func (r *LoginAttemptRepository) Save(ctx context.Context, state *models.LoginAttemptState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *state
	if state.LockedUntil != nil {
		t := *state.LockedUntil
		stored.LockedUntil = &t
	}
	r.states[state.Email] = stored
	return nil
}

func (r *LoginAttemptRepository) Delete(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, email)
	return nil
}

// DeleteExpired drops lockouts that ended before now and returns how many were removed.
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for email, state := range r.states {
		if state.LockedUntil != nil && !now.Before(*state.LockedUntil) {
			delete(r.states, email)
			removed++
		}
	}
	return removed, nil
}
