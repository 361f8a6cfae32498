package auth

import "context"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the principal holds role. Both sides are
// normalised, so "admin" and "ROLE_ADMIN" match ADMIN.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	want := NormalizeRole(role)
	for _, r := range p.Roles {
		if NormalizeRole(r) == want {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached by WithPrincipal.
// The second result is false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
