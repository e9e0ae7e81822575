package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionUser() *models.SessionUser {
	return &models.SessionUser{
		ID:    "user-1",
		Email: "paciente@clinica.com",
		Name:  "Paciente",
		Role:  models.RolePatient,
	}
}

func TestSessionManager_ValidForThirtyMinutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	session, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(30*time.Minute), session.ExpiresAt)

	env.clock.Advance(29 * time.Minute)
	current, err := m.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.True(t, current.IsValid(env.clock.Now()))

	env.clock.Advance(2 * time.Minute)
	current, err = m.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, ok, err := env.storage.ForClient("client-1").GetItem(ctx, models.StorageKeyCurrentUser)
	require.NoError(t, err)
	assert.False(t, ok, "expiry timer erases persisted state")
}

func TestSessionManager_PersistedFormat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	_, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)

	store := env.storage.ForClient("client-1")

	loggedIn, ok, _ := store.GetItem(ctx, models.StorageKeyIsLoggedIn)
	require.True(t, ok)
	assert.Equal(t, "true", loggedIn)

	rawExpiry, ok, _ := store.GetItem(ctx, models.StorageKeySessionExpiresAt)
	require.True(t, ok)
	var expiry string
	require.NoError(t, json.Unmarshal([]byte(rawExpiry), &expiry))
	assert.Equal(t, "2026-03-10T09:30:00Z", expiry)

	rawUser, ok, _ := store.GetItem(ctx, models.StorageKeyCurrentUser)
	require.True(t, ok)
	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(rawUser), &fields))
	assert.Equal(t, "paciente@clinica.com", fields["email"])
	assert.NotContains(t, fields, "password_hash")
	assert.NotContains(t, fields, "PasswordHash")
}

func TestSessionManager_ActivitySlidesTheWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	_, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)

	env.clock.Advance(20 * time.Minute)
	renewed, err := m.RecordActivity(ctx, models.SignalKeyDown)
	require.NoError(t, err)
	assert.True(t, renewed)

	activityAt := testStart.Add(20 * time.Minute)
	assert.Equal(t, activityAt.Add(30*time.Minute), m.ExpiresAt(), "expiry is activity time + 30m, not original + 30m")

	env.clock.Advance(29 * time.Minute)
	current, _ := m.Current(ctx)
	assert.NotNil(t, current, "still valid 49 minutes after login")

	env.clock.Advance(2 * time.Minute)
	current, _ = m.Current(ctx)
	assert.Nil(t, current)
}

func TestSessionManager_AllTrackedSignalsRenew(t *testing.T) {
	for _, signal := range []models.ActivitySignal{
		models.SignalPointerDown, models.SignalKeyDown, models.SignalScroll, models.SignalTouchStart,
	} {
		t.Run(string(signal), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			m := env.sessionManager("client-1")
			_, err := m.Establish(ctx, testSessionUser())
			require.NoError(t, err)

			env.clock.Advance(time.Minute)
			renewed, err := m.RecordActivity(ctx, signal)
			require.NoError(t, err)
			assert.True(t, renewed)
			assert.Equal(t, testStart.Add(31*time.Minute), m.ExpiresAt())
		})
	}
}

func TestSessionManager_IgnoresUntrackedSignalsAndMissingSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	renewed, err := m.RecordActivity(ctx, models.SignalScroll)
	require.NoError(t, err)
	assert.False(t, renewed, "no session to renew")

	_, err = m.Establish(ctx, testSessionUser())
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	renewed, err = m.RecordActivity(ctx, models.ActivitySignal("mousemove"))
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.Equal(t, testStart.Add(30*time.Minute), m.ExpiresAt())
}

func TestSessionManager_RenewalCancelsOldTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	expired := 0
	m.OnExpire(func(*models.SessionUser) { expired++ })

	_, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	_, err = m.ResetSessionTimeout(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.clock.Pending(), "exactly one expiry timer is armed")

	// Past the original deadline: the superseded timer must not log out.
	env.clock.Advance(25 * time.Minute)
	current, _ := m.Current(ctx)
	assert.NotNil(t, current)
	assert.Zero(t, expired)

	env.clock.Advance(5 * time.Minute)
	current, _ = m.Current(ctx)
	assert.Nil(t, current)
	assert.Equal(t, 1, expired)
}

func TestSessionManager_ResetIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	_, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		expiresAt, err := m.ResetSessionTimeout(ctx)
		require.NoError(t, err)
		assert.Equal(t, testStart.Add(30*time.Minute), expiresAt)
	}
	assert.Equal(t, 1, env.clock.Pending())
}

func TestSessionManager_RestoreReArmsRemainingTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.sessionManager("client-1")
	_, err := first.Establish(ctx, testSessionUser())
	require.NoError(t, err)
	first.Detach()
	assert.Zero(t, env.clock.Pending())

	env.clock.Advance(10 * time.Minute)

	second := env.sessionManager("client-1")
	user, err := second.RestoreSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, testStart.Add(30*time.Minute), second.ExpiresAt(), "restore keeps the persisted deadline")
	assert.Equal(t, 1, env.clock.Pending())

	env.clock.Advance(20 * time.Minute)
	current, _ := second.Current(ctx)
	assert.Nil(t, current)
	_, ok, _ := env.storage.ForClient("client-1").GetItem(ctx, models.StorageKeyIsLoggedIn)
	assert.False(t, ok)
}

func TestSessionManager_RestoreDiscardsExpiredState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.sessionManager("client-1")
	_, err := first.Establish(ctx, testSessionUser())
	require.NoError(t, err)
	first.Detach()

	env.clock.Advance(45 * time.Minute)

	second := env.sessionManager("client-1")
	user, err := second.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Zero(t, env.clock.Pending())

	for _, key := range sessionKeys {
		_, ok, _ := env.storage.ForClient("client-1").GetItem(ctx, key)
		assert.False(t, ok, key)
	}
}

func TestSessionManager_RestoreDiscardsIncompleteState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := env.storage.ForClient("client-1")

	require.NoError(t, store.SetItems(ctx, map[string]string{
		models.StorageKeyCurrentUser: `{"id":"user-1"}`,
		models.StorageKeyIsLoggedIn:  "true",
	}))

	user, err := env.sessionManager("client-1").RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, ok, _ := store.GetItem(ctx, models.StorageKeyCurrentUser)
	assert.False(t, ok)
}

func TestSessionManager_RestoreWithNothingPersisted(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.sessionManager("client-1").RestoreSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSessionManager_RestoreDropsStrayLoginFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	storage := env.storage.ForClient("client-1")
	require.NoError(t, storage.SetItems(ctx, map[string]string{models.StorageKeyIsLoggedIn: "true"}))

	user, err := env.sessionManager("client-1").RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, ok, err := storage.GetItem(ctx, models.StorageKeyIsLoggedIn)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionManager_ClearSessionWithoutSessionIsNoop(t *testing.T) {
	env := newTestEnv(t)
	m := env.sessionManager("client-1")

	assert.NoError(t, m.ClearSession(context.Background()))
	assert.NoError(t, m.ClearSession(context.Background()))
}

func TestSessionManager_ClearSessionStopsTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	expired := 0
	m.OnExpire(func(*models.SessionUser) { expired++ })

	_, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)
	require.NoError(t, m.ClearSession(ctx))

	assert.Zero(t, env.clock.Pending())
	env.clock.Advance(time.Hour)
	assert.Zero(t, expired)
}

func TestSessionManager_LogoutAllClearsNamespace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")
	store := env.storage.ForClient("client-1")

	_, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)
	require.NoError(t, store.SetItems(ctx, map[string]string{"preferences": `{"theme":"dark"}`}))

	require.NoError(t, m.LogoutAllSessions(ctx))

	_, ok, _ := store.GetItem(ctx, "preferences")
	assert.False(t, ok)
	current, _ := m.Current(ctx)
	assert.Nil(t, current)
}

func TestSessionManager_StorageFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	storeErr := errors.New("disk full")
	m := NewSessionManager(&FailingStorage{Err: storeErr}, env.clock, 30*time.Minute, newTestLogger())

	_, err := m.Establish(ctx, testSessionUser())
	assert.ErrorIs(t, err, storeErr)
	assert.Zero(t, env.clock.Pending())

	assert.ErrorIs(t, m.LogoutAllSessions(ctx), storeErr)
	_, err = m.RestoreSession(ctx)
	assert.ErrorIs(t, err, storeErr)
}

func TestSessionManager_UpdateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.sessionManager("client-1")

	assert.ErrorIs(t, m.UpdateUser(ctx, testSessionUser()), models.ErrUnauthenticated)

	_, err := m.Establish(ctx, testSessionUser())
	require.NoError(t, err)

	updated := testSessionUser()
	updated.MFAEnabled = true
	require.NoError(t, m.UpdateUser(ctx, updated))

	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.True(t, current.User.MFAEnabled)
	assert.Equal(t, testStart.Add(30*time.Minute), current.ExpiresAt, "updating the user does not renew")
}
