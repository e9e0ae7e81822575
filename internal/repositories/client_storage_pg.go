package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/clinicauth/internal/database"
	"github.com/jackc/pgx/v5"
)

// PostgresClientStorage persists client namespaces in the client_storage table,
// so sessions survive a server restart.
type PostgresClientStorage struct {
	db *database.DB
}

func NewPostgresClientStorage(db *database.DB) *PostgresClientStorage {
	return &PostgresClientStorage{db: db}
}

func (s *PostgresClientStorage) ForClient(clientID string) *PostgresStorage {
	return &PostgresStorage{db: s.db, namespace: clientID}
}

// DeleteStale drops namespaces whose newest row is older than before.
func (s *PostgresClientStorage) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	query := `
		DELETE FROM client_storage
		WHERE namespace IN (
			SELECT namespace FROM client_storage
			GROUP BY namespace
			HAVING MAX(updated_at) < $1
		)
	`

	result, err := s.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale client storage: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// PostgresStorage is one client's namespace.
type PostgresStorage struct {
	db        *database.DB
	namespace string
}

func (p *PostgresStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.Pool.QueryRow(ctx,
		`SELECT value FROM client_storage WHERE namespace = $1 AND key = $2`,
		p.namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read client storage: %w", database.MapPostgresError(err))
	}
	return value, true, nil
}

// SetItems upserts all items in one transaction.
func (p *PostgresStorage) SetItems(ctx context.Context, items map[string]string) error {
	return p.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for key, value := range items {
			_, err := tx.Exec(ctx, `
				INSERT INTO client_storage (namespace, key, value, updated_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
			`, p.namespace, key, value)
			if err != nil {
				return fmt.Errorf("failed to write client storage key %q: %w", key, database.MapPostgresError(err))
			}
		}
		return nil
	})
}

func (p *PostgresStorage) RemoveItems(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := p.db.Pool.Exec(ctx,
		`DELETE FROM client_storage WHERE namespace = $1 AND key = ANY($2)`,
		p.namespace, keys,
	)
	if err != nil {
		return fmt.Errorf("failed to remove client storage keys: %w", database.MapPostgresError(err))
	}
	return nil
}

func (p *PostgresStorage) Clear(ctx context.Context) error {
	_, err := p.db.Pool.Exec(ctx, `DELETE FROM client_storage WHERE namespace = $1`, p.namespace)
	if err != nil {
		return fmt.Errorf("failed to clear client storage: %w", database.MapPostgresError(err))
	}
	return nil
}
