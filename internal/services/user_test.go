package services

import (
	"context"
	"testing"
	"time"

	"adminpanel/internal/models"
	"adminpanel/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()
	env.createUser(t, "ann", nil)

	tests := []struct {
		name  string
		in    CreateUserInput
		field string
	}{
		{"duplicate username", CreateUserInput{Username: "ann", Email: "other@example.com", Password: "password123"}, "username"},
		{"duplicate email", CreateUserInput{Username: "bob", Email: "ann@example.com", Password: "password123"}, "email"},
		{"invalid email", CreateUserInput{Username: "bob", Email: "not-an-email", Password: "password123"}, "email"},
		{"missing username", CreateUserInput{Email: "bob@example.com", Password: "password123"}, "username"},
		{"short password", CreateUserInput{Username: "bob", Email: "bob@example.com", Password: "short"}, "password"},
		{"unknown role", CreateUserInput{Username: "bob", Email: "bob@example.com", Password: "password123", RoleID: ptr(uint(999))}, "role_id"},
		{"unknown permission", CreateUserInput{Username: "bob", Email: "bob@example.com", Password: "password123", DirectPermissions: []string{"fly"}}, "direct_permissions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.CreateUser(ctx, tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	var count int64
	env.db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateUserDefaults(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	u := env.createUser(t, "ann", nil)

	assert.True(t, u.IsActive)
	assert.False(t, u.IsSuperuser)
	assert.NotEqual(t, "password123", u.PasswordHash)
	assert.True(t, env.auth.VerifyPassword(u.PasswordHash, "password123"))

	inactive := env.createUser(t, "bob", func(in *CreateUserInput) { in.IsActive = ptr(false) })
	assert.False(t, inactive.IsActive)
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()
	manager := env.roleByName(t, "Manager")
	u := env.createUser(t, "ann", func(in *CreateUserInput) { in.RoleID = &manager.ID })

	t.Run("partial update keeps other fields", func(t *testing.T) {
		updated, err := env.users.UpdateUser(ctx, u.ID, UpdateUserInput{Email: ptr("ann@new.example.com")})
		require.NoError(t, err)
		assert.Equal(t, "ann@new.example.com", updated.Email)
		assert.Equal(t, "ann", updated.Username)
		require.NotNil(t, updated.Role)
		assert.Equal(t, "Manager", updated.Role.Name)
	})

	t.Run("role reassignment", func(t *testing.T) {
		admin := env.roleByName(t, "Admin")
		updated, err := env.users.UpdateUser(ctx, u.ID, UpdateUserInput{RoleID: &admin.ID})
		require.NoError(t, err)
		assert.Equal(t, admin.ID, *updated.RoleID)
		assert.True(t, rbac.HasPermission(updated, rbac.ManageUsers))
	})

	t.Run("role id zero clears the role", func(t *testing.T) {
		updated, err := env.users.UpdateUser(ctx, u.ID, UpdateUserInput{RoleID: ptr(uint(0))})
		require.NoError(t, err)
		assert.Nil(t, updated.RoleID)
		assert.Empty(t, rbac.Resolve(updated))
	})

	t.Run("password rotation", func(t *testing.T) {
		updated, err := env.users.UpdateUser(ctx, u.ID, UpdateUserInput{Password: ptr("brand-new-pass")})
		require.NoError(t, err)
		assert.True(t, env.auth.VerifyPassword(updated.PasswordHash, "brand-new-pass"))
	})

	t.Run("false flags are written", func(t *testing.T) {
		_, err := env.users.UpdateUser(ctx, u.ID, UpdateUserInput{IsStaff: ptr(true)})
		require.NoError(t, err)
		updated, err := env.users.UpdateUser(ctx, u.ID, UpdateUserInput{IsStaff: ptr(false)})
		require.NoError(t, err)
		assert.False(t, updated.IsStaff)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.users.UpdateUser(ctx, 4242, UpdateUserInput{FirstName: ptr("x")})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestDirectPermissions(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()
	u := env.createUser(t, "ann", nil)

	updated, err := env.users.SetDirectPermissions(ctx, u.ID, []string{"view_logs", "view_logs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"view_logs"}, updated.DirectPermissionCodes())

	_, set, err := env.users.EffectivePermissions(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, set.Has(rbac.ViewLogs))

	updated, err = env.users.SetDirectPermissions(ctx, u.ID, []string{})
	require.NoError(t, err)
	assert.Empty(t, updated.DirectPermissionCodes())
}

func TestDeactivate(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()
	actor := env.createUser(t, "admin", nil)
	u := env.createUser(t, "ann", nil)
	require.NoError(t, env.auth.CreateSession(ctx, u.ID, "ann-token", time.Now().Add(time.Hour)))

	_, err := env.users.Deactivate(ctx, actor.ID, actor.ID)
	assert.ErrorIs(t, err, ErrSelfDeactivation)

	deactivated, err := env.users.Deactivate(ctx, actor.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	_, err = env.auth.GetSession(ctx, "ann-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// The row is kept.
	_, err = env.users.GetUser(ctx, u.ID)
	assert.NoError(t, err)

	toggled, err := env.users.ToggleStatus(ctx, actor.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t, testConfig(t))
	ctx := context.Background()
	env.createUser(t, "ann", nil)
	env.createUser(t, "bob", nil)
	env.createUser(t, "carol", func(in *CreateUserInput) { in.IsActive = ptr(false) })

	page, err := env.users.ListUsers(ctx, UserFilter{Ordering: "username"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Count)
	assert.Equal(t, "ann", page.Results[0].Username)

	page, err = env.users.ListUsers(ctx, UserFilter{IsActive: ptr(false)})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "carol", page.Results[0].Username)

	page, err = env.users.ListUsers(ctx, UserFilter{Search: "bob@"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Count)
}
