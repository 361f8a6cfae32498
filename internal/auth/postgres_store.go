package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS credentials (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    roles TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresCredentialStore implements CredentialStore on PostgreSQL for
// deployments that share accounts between several shopgate instances.
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialStore creates a store on pool.
func NewPostgresCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool}
}

// EnsureSchema creates the credentials table if it does not exist.
func (s *PostgresCredentialStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating credentials table: %w", err)
	}
	return nil
}

// FindByUsername loads a credential.
func (s *PostgresCredentialStore) FindByUsername(ctx context.Context, username string) (*Credential, error) {
	var c Credential
	err := s.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, roles, created_at FROM credentials WHERE username = $1",
		username,
	).Scan(&c.ID, &c.Username, &c.PasswordHash, &c.Roles, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying credential: %w", err)
	}
	if c.Roles == nil {
		c.Roles = []string{}
	}
	return &c, nil
}

// Save inserts cred. The UNIQUE constraint on username guards concurrent
// registrations of the same name.
func (s *PostgresCredentialStore) Save(ctx context.Context, cred *Credential) error {
	if cred.ID == "" {
		cred.ID = "usr-" + uuid.NewString()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	cred.Roles = roleSet(cred.Roles)

	_, err := s.pool.Exec(ctx,
		"INSERT INTO credentials (id, username, password_hash, roles, created_at) VALUES ($1, $2, $3, $4, $5)",
		cred.ID, cred.Username, cred.PasswordHash, cred.Roles, cred.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting credential: %w", err)
	}
	return nil
}

// Count returns the number of stored credentials.
func (s *PostgresCredentialStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM credentials").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting credentials: %w", err)
	}
	return count, nil
}
