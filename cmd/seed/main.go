// Command seed creates the permission catalog, the default roles and the
// bootstrap superuser without starting the server.
package main

import (
	"context"
	"flag"
	"log"

	"adminpanel/internal/audit"
	"adminpanel/internal/config"
	"adminpanel/internal/logger"
	"adminpanel/internal/models"
	"adminpanel/internal/rbac"
	"adminpanel/internal/services"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := models.Open(cfg)
	if err != nil {
		zlog.Fatal("open database", zap.Error(err))
	}

	ctx := context.Background()
	recorder := audit.NewRecorder(audit.NewStore(db), zlog, audit.NewMetrics(nil), 0)
	defer func() { _ = recorder.Close(ctx) }()

	permissions := services.NewPermissionService(db, rbac.NewCatalog(), cfg)
	roles := services.NewRoleService(db, permissions)
	created, err := roles.EnsureDefaultRoles(ctx)
	if err != nil {
		zlog.Fatal("seed default roles", zap.Error(err))
	}
	zlog.Info("roles seeded", zap.Int("created", created), zap.Int("defaults", len(services.DefaultRoles)))

	user, err := services.NewAuthService(db, cfg, recorder).CreateDefaultUser(ctx)
	if err != nil {
		zlog.Fatal("create default user", zap.Error(err))
	}
	if user != nil {
		zlog.Info("default user created", zap.String("username", user.Username))
	} else {
		zlog.Info("users already exist, default user skipped")
	}
}
