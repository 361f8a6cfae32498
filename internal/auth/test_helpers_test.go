package auth

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/shopgate/internal/infrastructure/database"
	_ "github.com/nerrad567/shopgate/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// testDB opens a migrated SQLite database in a temp directory.
// It is closed when the test completes.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

// testHasher returns a bcrypt hasher at minimum cost so tests stay fast.
func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(AlgorithmBcrypt, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

func testCodec(t *testing.T) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec(testSecret, DefaultTokenLifetime)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	return c
}

// seedCredential stores username with password and roles.
func seedCredential(t *testing.T, store CredentialStore, username, password string, roles ...string) *Credential {
	t.Helper()

	hash, err := testHasher(t).Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	cred := &Credential{Username: username, PasswordHash: hash, Roles: roles}
	if err := store.Save(context.Background(), cred); err != nil {
		t.Fatalf("saving credential %s: %v", username, err)
	}
	return cred
}
