package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
)

// RecoveryCodeRepository holds at most one recovery code per email.
type RecoveryCodeRepository struct {
	mu    sync.Mutex
	codes map[string]models.RecoveryCode
}

func NewRecoveryCodeRepository() *RecoveryCodeRepository {
	return &RecoveryCodeRepository{codes: make(map[string]models.RecoveryCode)}
}

func (r *RecoveryCodeRepository) Get(ctx context.Context, email string) (*models.RecoveryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	if code.VerifiedAt != nil {
		t := *code.VerifiedAt
		code.VerifiedAt = &t
	}
	return &code, nil
}

// Save creates or overwrites the entry for code.Email.
func (r *RecoveryCodeRepository) Save(ctx context.Context, code *models.RecoveryCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *code
	if code.VerifiedAt != nil {
		t := *code.VerifiedAt
		stored.VerifiedAt = &t
	}
	r.codes[code.Email] = stored
	return nil
}

// DeleteExpired drops codes whose deadline is before the given instant.
func (r *RecoveryCodeRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for email, code := range r.codes {
		if code.ExpiresAt.Before(before) {
			delete(r.codes, email)
			removed++
		}
	}
	return removed, nil
}
