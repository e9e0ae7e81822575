//go:build integration

package repositories

import (
	"context"
	"io"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/clinicauth/internal/database"
	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/BradenHooton/clinicauth/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase starts a PostgreSQL container and applies the migrations
func setupTestDatabase(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("clinicauth"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	goose.SetLogger(log.New(io.Discard, "", 0))
	db := database.Wrap(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, db.Migrate(ctx, migrations.FS))

	return db
}

func TestPostgres(t *testing.T) {
	db := setupTestDatabase(t)

	t.Run("UserRepository", func(t *testing.T) {
		repo := NewUserRepository(db)
		ctx := context.Background()

		created, err := repo.Create(ctx, &models.User{
			Email:        "Profissional@Clinica.com",
			Name:         "Dra. Ana",
			PasswordHash: "hash",
			Role:         models.RoleProfessional,
		})
		require.NoError(t, err)
		assert.Equal(t, "profissional@clinica.com", created.Email)
		assert.Nil(t, created.MFASecretEncrypted)

		_, err = repo.Create(ctx, &models.User{Email: "profissional@clinica.com", Name: "dup", PasswordHash: "x"})
		assert.ErrorIs(t, err, models.ErrConflict)

		changed := time.Now().UTC().Truncate(time.Microsecond)
		created.PasswordHash = "new-hash"
		created.PasswordChangedAt = &changed
		created.MFAEnabled = true
		created.MFASecretEncrypted = []byte{1, 2, 3}
		created.MFASecretNonce = []byte{4, 5, 6}
		_, err = repo.Update(ctx, created)
		require.NoError(t, err)

		fetched, err := repo.GetByEmail(ctx, "PROFISSIONAL@clinica.com")
		require.NoError(t, err)
		assert.Equal(t, "new-hash", fetched.PasswordHash)
		assert.True(t, fetched.MFAEnabled)
		assert.True(t, fetched.HasMFASecret())
		require.NotNil(t, fetched.PasswordChangedAt)
		assert.True(t, changed.Equal(*fetched.PasswordChangedAt))

		_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("PostgresClientStorage", func(t *testing.T) {
		store := NewPostgresClientStorage(db)
		ctx := context.Background()
		a := store.ForClient("client-a")

		require.NoError(t, a.SetItems(ctx, map[string]string{
			models.StorageKeyIsLoggedIn:       "true",
			models.StorageKeySessionExpiresAt: `"2026-03-10T09:30:00Z"`,
		}))
		require.NoError(t, a.SetItems(ctx, map[string]string{models.StorageKeyIsLoggedIn: "false"}))

		value, ok, err := a.GetItem(ctx, models.StorageKeyIsLoggedIn)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "false", value)

		_, ok, err = store.ForClient("client-b").GetItem(ctx, models.StorageKeyIsLoggedIn)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, a.RemoveItems(ctx, models.StorageKeyIsLoggedIn))
		_, ok, _ = a.GetItem(ctx, models.StorageKeyIsLoggedIn)
		assert.False(t, ok)

		removed, err := store.DeleteStale(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		require.NoError(t, a.Clear(ctx))
	})
}
