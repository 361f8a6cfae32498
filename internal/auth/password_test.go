package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func argonHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(AlgorithmArgon2id, 0)
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

func TestHasher_Argon2idRoundTrip(t *testing.T) {
	h := argonHasher(t)
	password := "correct-horse-battery-staple"

	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash should start with $argon2id$, got %q", hash)
	}

	ok, err := h.Matches(password, hash)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if !ok {
		t.Error("Matches() should return true for correct password")
	}

	ok, err = h.Matches("wrong-password", hash)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if ok {
		t.Error("Matches() should return false for wrong password")
	}
}

func TestHasher_Argon2idPHCFormat(t *testing.T) {
	hash, err := argonHasher(t).Hash("test")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("PHC format should have 6 $-delimited parts, got %d: %q", len(parts), hash)
	}
	if parts[2] != "v=19" {
		t.Errorf("version should be v=19, got %q", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=1" {
		t.Errorf("params should be m=65536,t=3,p=1, got %q", parts[3])
	}
}

func TestHasher_UniqueSalts(t *testing.T) {
	for _, h := range []*Hasher{argonHasher(t), testHasher(t)} {
		hash1, _ := h.Hash("same-password")
		hash2, _ := h.Hash("same-password")
		if hash1 == hash2 {
			t.Errorf("%s: two hashes of the same password should differ", h.Algorithm())
		}
	}
}

func TestHasher_BcryptRoundTrip(t *testing.T) {
	h := testHasher(t)

	hash, err := h.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("bcrypt hash should start with $2a$, got %q", hash)
	}

	if ok, _ := h.Matches("s3cret-password", hash); !ok {
		t.Error("Matches() should return true for correct password")
	}
	if ok, _ := h.Matches("other", hash); ok {
		t.Error("Matches() should return false for wrong password")
	}
}

func TestHasher_VerifiesEitherFormat(t *testing.T) {
	argonHash, _ := argonHasher(t).Hash("pw-one-two")
	bcryptHash, _ := testHasher(t).Hash("pw-one-two")

	for _, h := range []*Hasher{argonHasher(t), testHasher(t)} {
		for _, hash := range []string{argonHash, bcryptHash} {
			ok, err := h.Matches("pw-one-two", hash)
			if err != nil || !ok {
				t.Errorf("%s.Matches(%q) = %v, %v; want true, nil", h.Algorithm(), hash[:7], ok, err)
			}
		}
	}
}

func TestHasher_InvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "plaintext"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=1"},
		{"zero params", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA"},
		{"truncated bcrypt", "$2a$10$short"},
	}

	h := argonHasher(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Matches("password", tt.hash)
			if !errors.Is(err, ErrInvalidHash) {
				t.Errorf("Matches() error = %v, want ErrInvalidHash", err)
			}
			if ok {
				t.Error("Matches() should be false for an invalid hash")
			}
		})
	}
}

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		cost      int
		wantAlg   string
		wantErr   bool
	}{
		{"default", "", 0, AlgorithmArgon2id, false},
		{"argon2id", AlgorithmArgon2id, 0, AlgorithmArgon2id, false},
		{"bcrypt default cost", AlgorithmBcrypt, 0, AlgorithmBcrypt, false},
		{"bcrypt min cost", AlgorithmBcrypt, bcrypt.MinCost, AlgorithmBcrypt, false},
		{"bcrypt cost too low", AlgorithmBcrypt, 2, "", true},
		{"bcrypt cost too high", AlgorithmBcrypt, 40, "", true},
		{"unknown", "md5", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.algorithm, tt.cost)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewHasher() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHasher() error = %v", err)
			}
			if h.Algorithm() != tt.wantAlg {
				t.Errorf("Algorithm() = %q, want %q", h.Algorithm(), tt.wantAlg)
			}
		})
	}
}

func BenchmarkHasher_Argon2id(b *testing.B) {
	h, _ := NewHasher(AlgorithmArgon2id, 0)
	hash, _ := h.Hash("correct-horse-battery-staple")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Matches("correct-horse-battery-staple", hash) //nolint:errcheck // benchmark
	}
}
