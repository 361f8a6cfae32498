package auth

import "errors"

// Sentinel errors for credential and login operations.
// Login callers must not reveal which of ErrUserNotFound and
// ErrBadCredentials occurred.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrBadCredentials = errors.New("bad credentials")
	ErrDuplicateUser  = errors.New("username already exists")
	ErrInvalidHash    = errors.New("unrecognised password hash format")

	ErrInvalidUsername = errors.New("username must be 3-64 letters, digits, '.', '-' or '_'")
	ErrWeakPassword    = errors.New("password must be at least 8 characters")
)

// Sentinel errors matched by TokenError via errors.Is.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// TokenErrorKind classifies why a token failed verification.
type TokenErrorKind int

const (
	TokenMalformed TokenErrorKind = iota + 1
	TokenBadSignature
	TokenExpired
)

// String returns the kind's name for logging.
func (k TokenErrorKind) String() string {
	switch k {
	case TokenMalformed:
		return "malformed"
	case TokenBadSignature:
		return "bad_signature"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// TokenError is returned by TokenCodec.Verify.
type TokenError struct {
	Kind TokenErrorKind
	// Err is the underlying parser error, if any.
	Err error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return e.sentinel().Error() + ": " + e.Err.Error()
	}
	return e.sentinel().Error()
}

func (e *TokenError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.sentinel(), e.Err}
	}
	return []error{e.sentinel()}
}

func (e *TokenError) sentinel() error {
	switch e.Kind {
	case TokenBadSignature:
		return ErrTokenBadSignature
	case TokenExpired:
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}
