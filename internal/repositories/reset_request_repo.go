package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
)

// ResetRequestRepository counts password reset requests per email.
type ResetRequestRepository struct {
	mu       sync.Mutex
	requests map[string]models.PasswordResetRequest
}

func NewResetRequestRepository() *ResetRequestRepository {
	return &ResetRequestRepository{requests: make(map[string]models.PasswordResetRequest)}
}

func (r *ResetRequestRepository) Get(ctx context.Context, email string) (*models.PasswordResetRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &req, nil
}

func (r *ResetRequestRepository) Save(ctx context.Context, req *models.PasswordResetRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests[req.Email] = *req
	return nil
}

// DeleteStale drops entries whose last request happened before the given instant.
func (r *ResetRequestRepository) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for email, req := range r.requests {
		if req.LastRequestAt.Before(before) {
			delete(r.requests, email)
			removed++
		}
	}
	return removed, nil
}
