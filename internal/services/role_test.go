package services

import (
	"context"
	"testing"

	"adminpanel/internal/config"
	"adminpanel/internal/models"
	"adminpanel/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultRoles(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()

	// newTestEnv already ran it once.
	created, err := env.roles.EnsureDefaultRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	env.db.Model(&models.Role{}).Count(&count)
	assert.Equal(t, int64(3), count)

	assert.Equal(t,
		[]string{"manage_permissions", "manage_roles", "manage_users", "view_logs"},
		env.roleByName(t, "Super Admin").PermissionCodes(),
	)
	assert.Equal(t, []string{"manage_users", "view_logs"}, env.roleByName(t, "Admin").PermissionCodes())
	assert.Equal(t, []string{"view_logs"}, env.roleByName(t, "Manager").PermissionCodes())

	t.Run("a removed default role is recreated", func(t *testing.T) {
		require.NoError(t, env.roles.DeleteRole(ctx, env.roleByName(t, "Manager").ID))
		created, err := env.roles.EnsureDefaultRoles(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, created)
	})
}

func TestEnsureCatalogWithExtras(t *testing.T) {
	cfg := testConfig(t)
	cfg.Permissions.Extra = []config.PermissionDef{{Code: "export_reports", Name: "Can export reports"}}
	env := newTestEnv(t, cfg)

	require.NoError(t, env.permissions.EnsureCatalog(context.Background()))
	perms, err := env.permissions.ListPermissions(context.Background())
	require.NoError(t, err)
	require.Len(t, perms, 5)
	assert.Equal(t, "export_reports", perms[0].Codename)
	assert.Equal(t, "user", perms[0].ResourceType)
}

func TestRolePermissionReplacement(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()

	role, err := env.roles.CreateRole(ctx, RoleInput{
		Name:        ptr("Auditor"),
		Description: ptr("Reads logs"),
		Permissions: &[]string{"view_logs"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"view_logs"}, role.PermissionCodes())

	t.Run("full replace", func(t *testing.T) {
		role, err := env.roles.UpdateRole(ctx, role.ID, RoleInput{Permissions: &[]string{"manage_users", "manage_roles"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"manage_roles", "manage_users"}, role.PermissionCodes())
		assert.Equal(t, "Reads logs", role.Description)
	})

	t.Run("unknown code leaves the set untouched", func(t *testing.T) {
		_, err := env.roles.UpdateRole(ctx, role.ID, RoleInput{
			Name:        ptr("Renamed"),
			Permissions: &[]string{"view_logs", "launch_rockets"},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "permissions")

		stored, err := env.roles.GetRole(ctx, role.ID)
		require.NoError(t, err)
		assert.Equal(t, "Auditor", stored.Name)
		assert.Equal(t, []string{"manage_roles", "manage_users"}, stored.PermissionCodes())
	})

	t.Run("members see the new set on their next check", func(t *testing.T) {
		member := env.createUser(t, "member", func(in *CreateUserInput) { in.RoleID = &role.ID })
		assert.True(t, rbac.HasPermission(member, rbac.ManageUsers))

		_, err := env.roles.UpdateRole(ctx, role.ID, RoleInput{Permissions: &[]string{}})
		require.NoError(t, err)

		reloaded, err := env.users.GetUser(ctx, member.ID)
		require.NoError(t, err)
		assert.False(t, rbac.HasPermission(reloaded, rbac.ManageUsers))
		assert.Empty(t, rbac.Resolve(reloaded))
	})

	t.Run("names are unique", func(t *testing.T) {
		_, err := env.roles.UpdateRole(ctx, role.ID, RoleInput{Name: ptr("Admin")})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "name")

		_, err = env.roles.CreateRole(ctx, RoleInput{})
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "name")
	})
}

func TestDeleteRoleClearsMembers(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()
	admin := env.roleByName(t, "Admin")

	u := env.createUser(t, "ann", func(in *CreateUserInput) {
		in.RoleID = &admin.ID
		in.DirectPermissions = []string{"manage_roles"}
	})
	assert.Equal(t, []string{"manage_roles", "manage_users", "view_logs"}, rbac.Resolve(u).Strings())

	require.NoError(t, env.roles.DeleteRole(ctx, admin.ID))

	reloaded, err := env.users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.RoleID)
	assert.Nil(t, reloaded.Role)
	assert.Equal(t, []string{"manage_roles"}, rbac.Resolve(reloaded).Strings())

	_, err = env.roles.GetRole(ctx, admin.ID)
	assert.ErrorIs(t, err, ErrRoleNotFound)
	assert.ErrorIs(t, env.roles.DeleteRole(ctx, admin.ID), ErrRoleNotFound)
}
