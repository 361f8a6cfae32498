package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenLifetime applies when NewTokenCodec is given a non-positive lifetime.
const DefaultTokenLifetime = time.Hour

// Claims is the payload of a shopgate access token.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// TokenCodec issues and verifies HS256-signed access tokens.
// The key is fixed at construction and never changes; a TokenCodec is safe
// for concurrent use.
type TokenCodec struct {
	key      []byte
	lifetime time.Duration
}

// NewTokenCodec creates a codec signing with secret. Tokens expire lifetime
// after issue.
func NewTokenCodec(secret string, lifetime time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is required")
	}
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenCodec{
		key:      []byte(secret),
		lifetime: lifetime,
	}, nil
}

// Lifetime returns how long issued tokens stay valid.
func (c *TokenCodec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue signs a token for subject carrying roles, valid from now until
// now plus the codec lifetime. Token timestamps have second precision, so
// exp is rounded up and a token never expires before the full lifetime.
func (c *TokenCodec) Issue(subject string, roles []string, now time.Time) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(c.lifetime))),
			ID:        uuid.NewString(),
		},
		Roles: roleSet(roles),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Verify checks structure, signature and expiry as of now. Failures are
// always a *TokenError.
func (c *TokenCodec) Verify(token string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyTokenError(err, claims, now)
	}

	if claims.Subject == "" {
		return nil, &TokenError{Kind: TokenMalformed, Err: errors.New("missing subject")}
	}
	return claims, nil
}

func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

func (c *TokenCodec) keyFunc(_ *jwt.Token) (any, error) {
	return c.key, nil
}

// classifyTokenError maps jwt parser errors onto TokenErrorKind.
// An expired token reports Expired whatever the state of its signature.
func classifyTokenError(err error, claims *Claims, now time.Time) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &TokenError{Kind: TokenMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
			return &TokenError{Kind: TokenExpired, Err: err}
		}
		return &TokenError{Kind: TokenBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}
