package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// dummyPassword is hashed once and compared against when a login names an
// unknown user, so both failure paths do the same hashing work.
const dummyPassword = "shopgate-dummy-password"

// Service implements login, token-to-principal resolution and registration.
type Service struct {
	store  CredentialStore
	hasher PasswordHasher
	codec  *TokenCodec
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used to issue and verify tokens.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires a Service from its collaborators.
func NewService(store CredentialStore, hasher PasswordHasher, codec *TokenCodec, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		hasher: hasher,
		codec:  codec,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenLifetime returns the lifetime of tokens issued by Login.
func (s *Service) TokenLifetime() time.Duration {
	return s.codec.Lifetime()
}

// Login verifies username and password and returns a signed token carrying
// the account's current roles. It returns ErrUserNotFound or
// ErrBadCredentials on failure; callers must not reveal which.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	cred, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		s.burnDummyHash(password)
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up credential: %w", err)
	}

	ok, err := s.hasher.Matches(password, cred.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return "", ErrBadCredentials
	}

	token, err := s.codec.Issue(cred.Username, cred.Roles, s.now())
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResolvePrincipal verifies token and returns the identity it carries.
// It never touches the credential store.
func (s *Service) ResolvePrincipal(token string) (*Principal, error) {
	claims, err := s.codec.Verify(token, s.now())
	if err != nil {
		return nil, err
	}

	roles := make([]string, len(claims.Roles))
	copy(roles, claims.Roles)
	return &Principal{Username: claims.Subject, Roles: roles}, nil
}

// Register creates an account with DefaultRoles. An existing account is
// never overwritten; ErrDuplicateUser is returned instead.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if !IsValidUsername(username) {
		return ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	cred := &Credential{
		Username:     username,
		PasswordHash: hash,
		Roles:        append([]string(nil), DefaultRoles...),
	}
	if err := s.store.Save(ctx, cred); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

func (s *Service) burnDummyHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(dummyPassword) //nolint:errcheck // an empty hash just skips the comparison
	})
	if s.dummyHash != "" {
		s.hasher.Matches(password, s.dummyHash) //nolint:errcheck // result is discarded
	}
}
