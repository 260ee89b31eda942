package handlers

import (
	"adminpanel/internal/models"
	"adminpanel/internal/rbac"
)

type RoleSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// UserPayload is the JSON form of a user. Permissions is the effective set,
// DirectPermissions the user's own grants.
type UserPayload struct {
	*models.User
	FullName          string       `json:"full_name"`
	Role              *RoleSummary `json:"role"`
	Permissions       []string     `json:"permissions"`
	DirectPermissions []string     `json:"direct_permissions"`
}

func NewUserPayload(u *models.User) UserPayload {
	p := UserPayload{
		User:              u,
		FullName:          u.FullName(),
		Permissions:       rbac.Resolve(u).Strings(),
		DirectPermissions: u.DirectPermissionCodes(),
	}
	if u.Role != nil {
		p.Role = &RoleSummary{ID: u.Role.ID, Name: u.Role.Name}
	}
	return p
}

func NewUserPayloads(users []models.User) []UserPayload {
	out := make([]UserPayload, 0, len(users))
	for i := range users {
		out = append(out, NewUserPayload(&users[i]))
	}
	return out
}

// RolePayload exposes the permission set as sorted codes so that replacing
// it shows up in update diffs.
type RolePayload struct {
	models.Role
	Permissions []string `json:"permissions"`
}

func NewRolePayload(r *models.Role) RolePayload {
	return RolePayload{Role: *r, Permissions: r.PermissionCodes()}
}

func NewRolePayloads(roles []models.Role) []RolePayload {
	out := make([]RolePayload, 0, len(roles))
	for i := range roles {
		out = append(out, NewRolePayload(&roles[i]))
	}
	return out
}
