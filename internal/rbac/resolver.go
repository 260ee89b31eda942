package rbac

import (
	"sort"

	"adminpanel/internal/models"
)

// PermissionSet is an unordered set of codes.
type PermissionSet map[PermissionCode]struct{}

// NewPermissionSet builds a set from codes.
func NewPermissionSet(codes ...PermissionCode) PermissionSet {
	s := make(PermissionSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s PermissionSet) Add(code PermissionCode) {
	s[code] = struct{}{}
}

func (s PermissionSet) Has(code PermissionCode) bool {
	_, ok := s[code]
	return ok
}

// Strings returns the codes sorted.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Resolve computes the effective permissions of u: direct grants, plus the
// role's permissions, plus the reserved administrative set for superusers.
// u must carry its Permissions and Role.Permissions; nothing is cached.
func Resolve(u *models.User) PermissionSet {
	set := make(PermissionSet)
	if u == nil {
		return set
	}
	for _, p := range u.Permissions {
		set.Add(PermissionCode(p.Codename))
	}
	if u.Role != nil {
		for _, p := range u.Role.Permissions {
			set.Add(PermissionCode(p.Codename))
		}
	}
	if u.IsSuperuser {
		for _, code := range ReservedAdminSet {
			set.Add(code)
		}
	}
	return set
}

// HasPermission reports whether u holds code. Superusers hold every code.
func HasPermission(u *models.User, code PermissionCode) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	return Resolve(u).Has(code)
}
