package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated bootstrap password.
const seedPasswordBytes = 16

// SeedAdmin creates the bootstrap administrator when the store holds no
// accounts. If password is empty one is generated and logged; it must be
// changed immediately. Returns the password used, or "" if seeding was skipped.
func SeedAdmin(ctx context.Context, store CredentialStore, hasher PasswordHasher, username, password string, logger *slog.Logger) (string, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking credential count: %w", err)
	}

	if count > 0 {
		logger.Info("credentials exist, skipping admin seed")
		return "", nil
	}

	generated := password == ""
	if generated {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(passwordBytes)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Credential{
		Username:     username,
		PasswordHash: hash,
		Roles:        []string{RoleAdmin, RoleUser},
	}
	if err := store.Save(ctx, admin); err != nil {
		// Another instance sharing the store got there first.
		if errors.Is(err, ErrDuplicateUser) {
			logger.Info("bootstrap admin already exists", "username", username)
			return "", nil
		}
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("bootstrap admin account created",
			"username", username,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("bootstrap admin account created", "username", username)
	}

	return password, nil
}
