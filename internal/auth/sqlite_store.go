package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/shopgate/internal/infrastructure/database"
)

// SQLiteCredentialStore implements CredentialStore on the shopgate SQLite
// database. Roles live in user_roles, one row per role.
type SQLiteCredentialStore struct {
	db *database.DB
}

// NewSQLiteCredentialStore creates a store backed by db. The credentials
// migration must already be applied.
func NewSQLiteCredentialStore(db *database.DB) *SQLiteCredentialStore {
	return &SQLiteCredentialStore{db: db}
}

// FindByUsername loads a credential and its roles.
func (s *SQLiteCredentialStore) FindByUsername(ctx context.Context, username string) (*Credential, error) {
	var (
		c         Credential
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username,
	).Scan(&c.ID, &c.Username, &c.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	rows, err := s.db.QueryContext(ctx,
		"SELECT role FROM user_roles WHERE user_id = ? ORDER BY role", c.ID)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()

	c.Roles = []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		c.Roles = append(c.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}

	return &c, nil
}

// Save inserts a new credential and its roles in one transaction. The ID
// and CreatedAt are filled in when empty.
func (s *SQLiteCredentialStore) Save(ctx context.Context, cred *Credential) error {
	if cred.ID == "" {
		cred.ID = "usr-" + uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.Roles = roleSet(cred.Roles)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		cred.ID, cred.Username, cred.PasswordHash, cred.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	for _, role := range cred.Roles {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role) VALUES (?, ?)", cred.ID, role,
		); err != nil {
			return fmt.Errorf("inserting role %s: %w", role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}
	return nil
}

// Count returns the number of stored credentials.
func (s *SQLiteCredentialStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
