package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/google/uuid"
)

// MemoryUserRepository is an in-process credential store.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.MFASecretEncrypted = append([]byte(nil), u.MFASecretEncrypted...)
	c.MFASecretNonce = append([]byte(nil), u.MFASecretNonce...)
	if u.LastActiveAt != nil {
		t := *u.LastActiveAt
		c.LastActiveAt = &t
	}
	if u.PasswordChangedAt != nil {
		t := *u.PasswordChangedAt
		c.PasswordChangedAt = &t
	}
	return &c
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := r.byEmail[email]; exists {
		return nil, models.ErrConflict
	}

	stored := cloneUser(user)
	stored.Email = email
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Role == "" {
		stored.Role = models.RolePatient
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.byID[stored.ID] = stored
	r.byEmail[email] = stored.ID
	return cloneUser(stored), nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return nil, models.ErrNotFound
	}

	stored := cloneUser(user)
	stored.Email = existing.Email
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.byID[stored.ID] = stored
	return cloneUser(stored), nil
}
