// Package auth provides stateless authentication and authorisation for shopgate.
//
// It covers:
//   - HS256 access tokens carrying subject, roles and expiry (TokenCodec)
//   - Login, registration and token-to-principal resolution (Service)
//   - Argon2id or bcrypt password hashing (Hasher)
//   - Credential storage on SQLite or PostgreSQL
//   - An ordered method/path rule table deciding 401, 403 or allow (AccessPolicy)
//
// Tokens are never stored server-side. A token's roles are the roles held
// when it was issued, so role changes take effect within one token lifetime.
package auth
