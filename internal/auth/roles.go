package auth

import (
	"sort"
	"strings"
)

// Known roles. Roles travel as free-form strings so new ones can be added
// without changing the token format; the access policy only honours the
// roles it knows about.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// DefaultRoles is the role set given to self-registered accounts.
var DefaultRoles = []string{RoleUser}

// KnownRoles lists the roles the default access policy recognises.
var KnownRoles = []string{RoleUser, RoleAdmin}

// rolePrefix is accepted and stripped for compatibility with stores that
// persist roles as ROLE_<NAME>.
const rolePrefix = "ROLE_"

// NormalizeRole upper-cases a role and strips an optional ROLE_ prefix.
func NormalizeRole(role string) string {
	r := strings.ToUpper(strings.TrimSpace(role))
	return strings.TrimPrefix(r, rolePrefix)
}

// roleSet returns a sorted copy of roles with blanks and duplicates removed.
// Spelling is preserved; normalisation happens where roles are checked.
func roleSet(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
