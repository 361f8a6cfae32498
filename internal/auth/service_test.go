package auth

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

// countingStore records how often the credential store is consulted.
type countingStore struct {
	CredentialStore
	finds atomic.Int32
}

func (s *countingStore) FindByUsername(ctx context.Context, username string) (*Credential, error) {
	s.finds.Add(1)
	return s.CredentialStore.FindByUsername(ctx, username)
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *countingStore) {
	t.Helper()
	store := &countingStore{CredentialStore: NewSQLiteCredentialStore(testDB(t))}
	return NewService(store, testHasher(t), testCodec(t), opts...), store
}

func TestService_RegisterThenLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "correct-horse"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	token, err := svc.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	p, err := svc.ResolvePrincipal(token)
	if err != nil {
		t.Fatalf("ResolvePrincipal() error = %v", err)
	}
	if p.Username != "alice" {
		t.Errorf("Username = %q, want %q", p.Username, "alice")
	}
	if !reflect.DeepEqual(p.Roles, []string{RoleUser}) {
		t.Errorf("Roles = %v, want [USER]", p.Roles)
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "first-password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	before, err := store.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername() error = %v", err)
	}

	err = svc.Register(ctx, "alice", "second-password")
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("Register() duplicate error = %v, want ErrDuplicateUser", err)
	}

	after, _ := store.FindByUsername(ctx, "alice")
	if after.PasswordHash != before.PasswordHash {
		t.Error("duplicate registration changed the stored hash")
	}
	if _, err := svc.Login(ctx, "alice", "first-password"); err != nil {
		t.Errorf("Login() with original password error = %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "second-password"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("Login() with rejected password error = %v, want ErrBadCredentials", err)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"short username", "ab", "long-enough", ErrInvalidUsername},
		{"bad characters", "bob smith", "long-enough", ErrInvalidUsername},
		{"short password", "bobby", "short", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_LoginFailures(t *testing.T) {
	svc, store := newTestService(t)
	seedCredential(t, store, "alice", "correct-horse", RoleUser)

	_, err := svc.Login(context.Background(), "nobody", "whatever")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Login(unknown) error = %v, want ErrUserNotFound", err)
	}

	_, err = svc.Login(context.Background(), "alice", "wrong-horse")
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("Login(wrong password) error = %v, want ErrBadCredentials", err)
	}
}

func TestService_LoginCarriesStoredRoles(t *testing.T) {
	svc, store := newTestService(t)
	seedCredential(t, store, "root", "admin-password", RoleAdmin, RoleUser)

	token, err := svc.Login(context.Background(), "root", "admin-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	p, err := svc.ResolvePrincipal(token)
	if err != nil {
		t.Fatalf("ResolvePrincipal() error = %v", err)
	}
	if !p.HasRole(RoleAdmin) || !p.HasRole(RoleUser) {
		t.Errorf("Roles = %v, want ADMIN and USER", p.Roles)
	}
}

func TestService_ResolvePrincipalSkipsStore(t *testing.T) {
	svc, store := newTestService(t)
	seedCredential(t, store, "alice", "correct-horse", RoleUser)

	token, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	before := store.finds.Load()

	for n := 0; n < 5; n++ {
		if _, err := svc.ResolvePrincipal(token); err != nil {
			t.Fatalf("ResolvePrincipal() error = %v", err)
		}
	}
	if got := store.finds.Load(); got != before {
		t.Errorf("store consulted %d times during resolution, want 0", got-before)
	}
}

func TestService_ResolvePrincipalExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t, WithClock(func() time.Time { return now }))
	seedCredential(t, store, "alice", "correct-horse", RoleUser)

	token, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	now = now.Add(svc.TokenLifetime())
	_, err = svc.ResolvePrincipal(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ResolvePrincipal() error = %v, want ErrTokenExpired", err)
	}
}

func TestService_ResolvePrincipalGarbage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ResolvePrincipal("garbage")
	if !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("ResolvePrincipal() error = %v, want ErrTokenMalformed", err)
	}
}
