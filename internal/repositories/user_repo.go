package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/clinicauth/internal/database"
	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, name, password_hash, role, mfa_enabled, mfa_secret_encrypted, mfa_secret_nonce,
	last_active_at, password_changed_at, created_at, updated_at`

// UserRepository is the Postgres credential store.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role string

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &role,
		&user.MFAEnabled, &user.MFASecretEncrypted, &user.MFASecretNonce,
		&user.LastActiveAt, &user.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	user.Role = models.Role(role)

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RolePatient
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, role, mfa_enabled, mfa_secret_encrypted, mfa_secret_nonce,
			last_active_at, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, string(user.Role),
		user.MFAEnabled, user.MFASecretEncrypted, user.MFASecretNonce,
		user.LastActiveAt, user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// Update persists the mutable fields of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users SET name = $1, password_hash = $2, role = $3, mfa_enabled = $4,
			mfa_secret_encrypted = $5, mfa_secret_nonce = $6, last_active_at = $7,
			password_changed_at = $8, updated_at = $9
		WHERE id = $10
		RETURNING ` + userColumns

	updated, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.Name, user.PasswordHash, string(user.Role), user.MFAEnabled,
		user.MFASecretEncrypted, user.MFASecretNonce, user.LastActiveAt,
		user.PasswordChangedAt, user.UpdatedAt, user.ID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return updated, nil
}
