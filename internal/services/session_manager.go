package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
)

// Storage is a client's persistent key/value namespace. Values are JSON strings.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItems(ctx context.Context, items map[string]string) error
	RemoveItems(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

var sessionKeys = []string{
	models.StorageKeyCurrentUser,
	models.StorageKeySessionExpiresAt,
	models.StorageKeyIsLoggedIn,
}

// SessionManager owns one client's session: its persisted projection, its
// absolute deadline and the timer that enforces it.
type SessionManager struct {
	mu      sync.Mutex
	storage Storage
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger

	user       *models.SessionUser
	expiresAt  time.Time
	timer      clock.Timer
	generation uint64
	onExpire   func(user *models.SessionUser)
}

func NewSessionManager(storage Storage, clk clock.Clock, timeout time.Duration, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		storage: storage,
		clock:   clk,
		timeout: timeout,
		logger:  logger,
	}
}

// OnExpire registers a hook run after the expiry timer forces a logout.
func (m *SessionManager) OnExpire(fn func(user *models.SessionUser)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// Establish persists user as the current session and arms a fresh deadline.
func (m *SessionManager) Establish(ctx context.Context, user *models.SessionUser) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session user: %w", err)
	}

	if err := m.storage.SetItems(ctx, map[string]string{
		models.StorageKeyCurrentUser: string(encoded),
		models.StorageKeyIsLoggedIn:  "true",
	}); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	u := *user
	m.user = &u

	if _, err := m.resetLocked(ctx); err != nil {
		return nil, err
	}
	return m.sessionLocked(), nil
}

// UpdateUser rewrites the persisted projection of a live session.
func (m *SessionManager) UpdateUser(ctx context.Context, user *models.SessionUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return models.ErrUnauthenticated
	}

	encoded, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	if err := m.storage.SetItems(ctx, map[string]string{models.StorageKeyCurrentUser: string(encoded)}); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	u := *user
	m.user = &u
	return nil
}

// ResetSessionTimeout moves the deadline to now + timeout and re-arms the
// expiry timer. The old timer is cancelled in the same locked step.
func (m *SessionManager) ResetSessionTimeout(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resetLocked(ctx)
}

func (m *SessionManager) resetLocked(ctx context.Context) (time.Time, error) {
	expiresAt := m.clock.Now().Add(m.timeout)

	encoded, err := json.Marshal(expiresAt.UTC())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to encode session expiry: %w", err)
	}
	if err := m.storage.SetItems(ctx, map[string]string{models.StorageKeySessionExpiresAt: string(encoded)}); err != nil {
		return time.Time{}, fmt.Errorf("failed to persist session expiry: %w", err)
	}

	m.expiresAt = expiresAt
	m.armLocked(m.timeout)
	return expiresAt, nil
}

// armLocked replaces any pending timer. Callbacks carry the generation they
// were armed with so a superseded timer that already fired is a no-op.
func (m *SessionManager) armLocked(d time.Duration) {
	m.stopTimerLocked()
	generation := m.generation
	m.timer = m.clock.AfterFunc(d, func() { m.expire(generation) })
}

func (m *SessionManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
}

func (m *SessionManager) expire(generation uint64) {
	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		return
	}

	user := m.user
	if err := m.clearLocked(context.Background()); err != nil {
		m.logger.Error("failed to clear expired session", slog.Any("error", err))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if user != nil {
		m.logger.Info("session expired", slog.String("user_id", user.ID))
	}
	if hook != nil {
		hook(user)
	}
}

// RestoreSession reconciles persisted state with live timers. A persisted
// session with a future deadline is re-armed for its remaining time; anything
// else is erased.
func (m *SessionManager) RestoreSession(ctx context.Context) (*models.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rawUser, hasUser, err := m.storage.GetItem(ctx, models.StorageKeyCurrentUser)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	rawExpiry, hasExpiry, err := m.storage.GetItem(ctx, models.StorageKeySessionExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read session expiry: %w", err)
	}

	if !hasUser && !hasExpiry {
		return nil, m.clearLocked(ctx)
	}

	var user models.SessionUser
	var expiresAt time.Time
	if !hasUser || !hasExpiry ||
		json.Unmarshal([]byte(rawUser), &user) != nil ||
		json.Unmarshal([]byte(rawExpiry), &expiresAt) != nil {
		m.logger.Warn("discarding incomplete persisted session")
		return nil, m.clearLocked(ctx)
	}

	now := m.clock.Now()
	if !now.Before(expiresAt) {
		m.logger.Info("discarding expired persisted session", slog.String("user_id", user.ID))
		return nil, m.clearLocked(ctx)
	}

	m.user = &user
	m.expiresAt = expiresAt
	m.armLocked(expiresAt.Sub(now))

	u := user
	return &u, nil
}

// ClearSession cancels the timer and erases persisted session state. It is a
// no-op without a session.
func (m *SessionManager) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.clearLocked(ctx)
}

func (m *SessionManager) clearLocked(ctx context.Context) error {
	m.stopTimerLocked()
	m.user = nil
	m.expiresAt = time.Time{}

	if err := m.storage.RemoveItems(ctx, sessionKeys...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// LogoutAllSessions erases every piece of persisted session material for the client.
func (m *SessionManager) LogoutAllSessions(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.user = nil
	m.expiresAt = time.Time{}

	if err := m.storage.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear client storage: %w", err)
	}
	return nil
}

// RecordActivity renews the session for a tracked interaction signal when a
// persisted user exists. It reports whether the deadline moved.
func (m *SessionManager) RecordActivity(ctx context.Context, signal models.ActivitySignal) (bool, error) {
	if !models.TrackedSignals[signal] {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, hasUser, err := m.storage.GetItem(ctx, models.StorageKeyCurrentUser)
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	if !hasUser || m.user == nil {
		return false, nil
	}
	if !m.clock.Now().Before(m.expiresAt) {
		return false, m.clearLocked(ctx)
	}

	if _, err := m.resetLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Current returns the live session, clearing it first if its deadline passed.
func (m *SessionManager) Current(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return nil, nil
	}
	if !m.clock.Now().Before(m.expiresAt) {
		return nil, m.clearLocked(ctx)
	}
	return m.sessionLocked(), nil
}

func (m *SessionManager) sessionLocked() *models.Session {
	u := *m.user
	return &models.Session{User: &u, ExpiresAt: m.expiresAt}
}

// ExpiresAt returns the current deadline, zero without a session.
func (m *SessionManager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// Detach stops the expiry timer without touching persisted state. The next
// RestoreSession on a new manager picks the session back up.
func (m *SessionManager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.user = nil
	m.expiresAt = time.Time{}
}
