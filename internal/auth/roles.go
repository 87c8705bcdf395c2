package auth

import "strings"

// RoleSet is a set of role names compared by intersection.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from role names, normalising case and whitespace.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r = normalizeRole(r); r != "" {
			s[r] = struct{}{}
		}
	}
	return s
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role string) bool {
	_, ok := s[normalizeRole(role)]
	return ok
}

// Intersects reports whether any of roles is in the set.
func (s RoleSet) Intersects(roles []string) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles in the set in no particular order.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	return out
}

func normalizeRole(r string) string {
	return strings.ToLower(strings.TrimSpace(r))
}
