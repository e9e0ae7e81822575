package repositories

import (
	"context"
	"testing"

	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository_CreateAndLookup(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.User{
		Email:        "  Paciente@Clinica.com ",
		Name:         "Paciente",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "paciente@clinica.com", created.Email)
	assert.Equal(t, models.RolePatient, created.Role)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "PACIENTE@clinica.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paciente", byID.Name)
}

func TestMemoryUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{Email: "a@clinica.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.User{Email: "A@clinica.com"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestMemoryUserRepository_NotFound(t *testing.T) {
	repo := NewMemoryUserRepository()

	_, err := repo.GetByEmail(context.Background(), "ghost@clinica.com")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.Update(context.Background(), &models.User{ID: "missing"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.User{Email: "p@clinica.com", PasswordHash: "original"})
	require.NoError(t, err)

	created.PasswordHash = "mutated"
	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", stored.PasswordHash)

	stored.PasswordHash = "updated"
	_, err = repo.Update(ctx, stored)
	require.NoError(t, err)

	again, err := repo.GetByEmail(ctx, "p@clinica.com")
	require.NoError(t, err)
	assert.Equal(t, "updated", again.PasswordHash)
}
