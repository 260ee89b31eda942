package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"adminpanel/internal/config"
	"adminpanel/internal/models"
	"adminpanel/internal/rbac"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type attemptLog struct {
	mu       sync.Mutex
	attempts []models.LoginAttempt
}

func (l *attemptLog) LoginAttempt(a *models.LoginAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, *a)
}

func (l *attemptLog) last() models.LoginAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[len(l.attempts)-1]
}

type testEnv struct {
	db          *gorm.DB
	cfg         *config.Config
	attempts    *attemptLog
	auth        *AuthService
	users       *UserService
	roles       *RoleService
	permissions *PermissionService
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "services_test.db")},
		},
		Security: config.SecurityConfig{
			BcryptCost:        4,
			PasswordMinLength: 8,
		},
		DefaultUser: config.DefaultUserConfig{
			Username: "admin",
			Email:    "admin@example.com",
			Password: "admin12345",
		},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	db, err := models.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{db: db, cfg: cfg, attempts: &attemptLog{}}
	env.permissions = NewPermissionService(db, rbac.NewCatalog(), cfg)
	env.roles = NewRoleService(db, env.permissions)
	env.auth = NewAuthService(db, cfg, env.attempts)
	env.users = NewUserService(db, env.auth, env.permissions)

	_, err = env.roles.EnsureDefaultRoles(context.Background())
	require.NoError(t, err)
	return env
}

func (e *testEnv) createUser(t *testing.T, username string, mutate func(*CreateUserInput)) *models.User {
	t.Helper()
	in := CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	}
	if mutate != nil {
		mutate(&in)
	}
	u, err := e.users.CreateUser(context.Background(), in)
	require.NoError(t, err)
	return u
}

func (e *testEnv) roleByName(t *testing.T, name string) *models.Role {
	t.Helper()
	var role models.Role
	require.NoError(t, e.db.Preload("Permissions").Where("name = ?", name).First(&role).Error)
	return &role
}

func ptr[T any](v T) *T {
	return &v
}
