package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// StorageFactory opens the persistent namespace of a client
type StorageFactory func(clientID string) Storage

type clientEntry struct {
	service  *AuthService
	lastSeen time.Time
}

// ClientRegistry keeps one AuthService per browser client. A client seen for
// the first time, or again after being swept, has its persisted session
// reconciled through RestoreSession before use.
type ClientRegistry struct {
	mu             sync.Mutex
	clients        map[string]*clientEntry
	deps           AuthDependencies
	storage        StorageFactory
	sessionTimeout time.Duration
}

func NewClientRegistry(deps AuthDependencies, storage StorageFactory, sessionTimeout time.Duration) *ClientRegistry {
	return &ClientRegistry{
		clients:        make(map[string]*clientEntry),
		deps:           deps,
		storage:        storage,
		sessionTimeout: sessionTimeout,
	}
}

// ForClient returns the AuthService for clientID, creating and restoring it on first use.
func (r *ClientRegistry) ForClient(ctx context.Context, clientID string) (*AuthService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.deps.Clock.Now()
	if entry, ok := r.clients[clientID]; ok {
		entry.lastSeen = now
		return entry.service, nil
	}

	sessions := NewSessionManager(r.storage(clientID), r.deps.Clock, r.sessionTimeout, r.deps.Logger.With(slog.String("client_id", clientID)))
	sessions.OnExpire(func(user *models.SessionUser) {
		event := pkglogger.AuditEvent{EventType: "session_expired", ClientID: clientID, Success: true}
		if user != nil {
			event.UserID = user.ID
		}
		r.deps.AuditLogger.LogSessionEvent(event)
	})

	restored, err := sessions.RestoreSession(ctx)
	if err != nil {
		r.deps.Logger.Error("failed to restore client session", slog.String("client_id", clientID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if restored != nil {
		r.deps.Logger.Info("session restored", slog.String("client_id", clientID), slog.String("user_id", restored.ID))
	}

	service := NewAuthService(r.deps, sessions, clientID)
	r.clients[clientID] = &clientEntry{service: service, lastSeen: now}
	return service, nil
}

// CurrentRole is the role signed in on clientID, "" when nobody is.
func (r *ClientRegistry) CurrentRole(ctx context.Context, clientID string) (models.Role, error) {
	service, err := r.ForClient(ctx, clientID)
	if err != nil {
		return "", err
	}
	return service.CurrentRole(ctx)
}

// SweepIdle forgets clients not seen for ttl. Their persisted sessions stay in
// storage and are restored if the client comes back.
func (r *ClientRegistry) SweepIdle(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.deps.Clock.Now().Add(-ttl)
	removed := 0
	for id, entry := range r.clients {
		if entry.lastSeen.Before(cutoff) {
			entry.service.Detach()
			delete(r.clients, id)
			removed++
		}
	}
	return removed
}

// Len reports how many clients are live.
func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Shutdown stops every session timer.
func (r *ClientRegistry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.clients {
		entry.service.Detach()
		delete(r.clients, id)
	}
}
