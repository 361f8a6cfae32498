package auth

import (
	"context"
	"regexp"
	"time"
)

// Credential is a stored account: a unique username, its password hash and
// its role set.
type Credential struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// CredentialStore persists credentials keyed by username.
//
// FindByUsername returns ErrUserNotFound when the name is absent.
// Save never overwrites; it returns ErrDuplicateUser when the username is taken.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	Count(ctx context.Context) (int, error)
}

// Username rules: 3-64 characters of letters, digits, dot, dash or underscore.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
)

// UsernamePattern matches an acceptable username.
var UsernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,64}$`)

// IsValidUsername reports whether name satisfies the username rules.
func IsValidUsername(name string) bool {
	return UsernamePattern.MatchString(name)
}
