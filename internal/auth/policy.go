package auth

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
)

// Access is what a rule demands of a request.
type Access int

const (
	// AccessPermit lets any request through, anonymous or not.
	AccessPermit Access = iota + 1
	// AccessAuthenticated requires a principal.
	AccessAuthenticated
	// AccessRole requires a principal holding Role.
	AccessRole
)

func (a Access) String() string {
	switch a {
	case AccessPermit:
		return "permit"
	case AccessAuthenticated:
		return "authenticated"
	case AccessRole:
		return "role"
	default:
		return "unknown"
	}
}

// MarshalText encodes the access kind by name.
func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// AccessRule maps a method set and path pattern to the access required.
//
// An empty Methods matches any method. A Pattern ending in "/**" matches the
// prefix and everything below it; any other Pattern uses path.Match syntax.
type AccessRule struct {
	Methods []string `json:"methods,omitempty"`
	Pattern string   `json:"pattern"`
	Access  Access   `json:"access"`
	Role    string   `json:"role,omitempty"`
}

func (r AccessRule) matches(method, p string) bool {
	if len(r.Methods) > 0 {
		found := false
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if prefix, ok := strings.CutSuffix(r.Pattern, "/**"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	ok, err := path.Match(r.Pattern, p)
	return err == nil && ok
}

// Decision is the outcome of evaluating a request against the policy.
type Decision int

const (
	DecisionAllow Decision = iota
	// DecisionUnauthenticated means a principal is required but absent (401).
	DecisionUnauthenticated
	// DecisionForbidden means the principal lacks the required role (403).
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// AccessPolicy is an ordered, immutable rule table. The first matching rule
// decides; a request matching no rule is denied.
type AccessPolicy struct {
	rules []AccessRule
	known map[string]struct{}
}

// NewAccessPolicy validates rules and builds a policy. Only roles listed in
// knownRoles can satisfy an AccessRole rule.
func NewAccessPolicy(rules []AccessRule, knownRoles ...string) (*AccessPolicy, error) {
	known := make(map[string]struct{}, len(knownRoles))
	for _, r := range knownRoles {
		known[NormalizeRole(r)] = struct{}{}
	}

	var errs []error
	copied := make([]AccessRule, len(rules))
	for i, rule := range rules {
		if !strings.HasPrefix(rule.Pattern, "/") {
			errs = append(errs, fmt.Errorf("rule %d: pattern %q must start with /", i, rule.Pattern))
		} else if _, err := path.Match(rule.Pattern, "/"); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: pattern %q: %w", i, rule.Pattern, err))
		}

		switch rule.Access {
		case AccessPermit, AccessAuthenticated:
		case AccessRole:
			rule.Role = NormalizeRole(rule.Role)
			if _, ok := known[rule.Role]; !ok {
				errs = append(errs, fmt.Errorf("rule %d: unknown role %q", i, rule.Role))
			}
		default:
			errs = append(errs, fmt.Errorf("rule %d: invalid access %d", i, rule.Access))
		}

		rule.Methods = append([]string(nil), rule.Methods...)
		copied[i] = rule
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid access policy: %w", err)
	}

	return &AccessPolicy{rules: copied, known: known}, nil
}

// DefaultAccessPolicy returns shopgate's rule table:
//
//  1. any /auth/**                           permit
//  2. any /console/**                        permit (only when consoleEnabled)
//  3. POST|PUT|PATCH|DELETE /product/**      role ADMIN
//  4. any /**                                authenticated
func DefaultAccessPolicy(consoleEnabled bool) *AccessPolicy {
	rules := []AccessRule{
		{Pattern: "/auth/**", Access: AccessPermit},
	}
	if consoleEnabled {
		rules = append(rules, AccessRule{Pattern: "/console/**", Access: AccessPermit})
	}
	rules = append(rules,
		AccessRule{
			Methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			Pattern: "/product/**",
			Access:  AccessRole,
			Role:    RoleAdmin,
		},
		AccessRule{Pattern: "/**", Access: AccessAuthenticated},
	)

	p, err := NewAccessPolicy(rules, KnownRoles...)
	if err != nil {
		panic(err) // static table
	}
	return p
}

// Rules returns a copy of the rule table in evaluation order.
func (p *AccessPolicy) Rules() []AccessRule {
	out := make([]AccessRule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Evaluate decides whether a request for method and urlPath by principal
// (nil when anonymous) may proceed. The path is cleaned first so dot
// segments cannot step around a rule.
func (p *AccessPolicy) Evaluate(method, urlPath string, principal *Principal) Decision {
	cleaned := path.Clean("/" + urlPath)

	for _, rule := range p.rules {
		if !rule.matches(method, cleaned) {
			continue
		}
		switch rule.Access {
		case AccessPermit:
			return DecisionAllow
		case AccessAuthenticated:
			if principal == nil {
				return DecisionUnauthenticated
			}
			return DecisionAllow
		case AccessRole:
			if principal == nil {
				return DecisionUnauthenticated
			}
			if p.holdsKnownRole(principal, rule.Role) {
				return DecisionAllow
			}
			return DecisionForbidden
		}
	}

	if principal == nil {
		return DecisionUnauthenticated
	}
	return DecisionForbidden
}

func (p *AccessPolicy) holdsKnownRole(principal *Principal, role string) bool {
	for _, r := range principal.Roles {
		n := NormalizeRole(r)
		if _, ok := p.known[n]; ok && n == role {
			return true
		}
	}
	return false
}
