// Package rbac holds the permission catalog, the effective-permission
// resolver and the access guard evaluated before gated operations.
package rbac

import (
	"sort"
	"sync"
)

// PermissionCode names one capability. Codes compare by exact string equality.
type PermissionCode string

// ResourceType tags the resource family a permission belongs to.
type ResourceType string

const (
	ResourceUser ResourceType = "user"
	ResourceRole ResourceType = "role"
	ResourceLog  ResourceType = "activity_log"
)

const (
	ManageUsers       PermissionCode = "manage_users"
	ManageRoles       PermissionCode = "manage_roles"
	ViewLogs          PermissionCode = "view_logs"
	ManagePermissions PermissionCode = "manage_permissions"
)

// ReservedAdminSet is granted to every superuser whether or not the codes
// are attached to any role.
var ReservedAdminSet = []PermissionCode{ManageUsers, ManageRoles, ViewLogs, ManagePermissions}

// Definition describes one catalog entry.
type Definition struct {
	Code         PermissionCode
	Name         string
	ResourceType ResourceType
}

// Catalog is the set of permission codes the system knows about.
type Catalog struct {
	mu   sync.RWMutex
	defs map[PermissionCode]Definition
}

// NewCatalog returns a catalog holding the built-in definitions.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[PermissionCode]Definition)}
	for _, d := range builtinDefinitions() {
		c.defs[d.Code] = d
	}
	return c
}

func builtinDefinitions() []Definition {
	// All four live on the user resource, matching where they were first declared.
	return []Definition{
		{Code: ManageUsers, Name: "Can manage users", ResourceType: ResourceUser},
		{Code: ManageRoles, Name: "Can manage roles", ResourceType: ResourceUser},
		{Code: ViewLogs, Name: "Can view activity logs", ResourceType: ResourceUser},
		{Code: ManagePermissions, Name: "Can manage permissions", ResourceType: ResourceUser},
	}
}

// Register adds a definition. Existing codes are left untouched so built-in
// entries cannot be redefined.
func (c *Catalog) Register(d Definition) bool {
	if d.Code == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.defs[d.Code]; ok {
		return false
	}
	if d.ResourceType == "" {
		d.ResourceType = ResourceUser
	}
	c.defs[d.Code] = d
	return true
}

// Lookup returns the definition for code.
func (c *Catalog) Lookup(code PermissionCode) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[code]
	return d, ok
}

// Contains reports whether code is known.
func (c *Catalog) Contains(code PermissionCode) bool {
	_, ok := c.Lookup(code)
	return ok
}

// Definitions lists every entry ordered by code.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defs := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		defs = append(defs, d)
	}
	c.mu.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Code < defs[j].Code })
	return defs
}
