package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adminpanel/internal/api/routes"
	"adminpanel/internal/config"
	"adminpanel/internal/logger"
	"adminpanel/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	if err := models.InitDB(cfg); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if cfg.JWT.Secret == "" {
		zlog.Warn("jwt secret not configured, using the built-in default")
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := gin.New()
	r.Use(logger.GinMiddleware(zlog), gin.Recovery())
	wiring := routes.SetupRoutes(r, cfg, models.DB, zlog, reg)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})

	// Seed the catalog, default roles and, on an empty database, the first superuser
	created, err := wiring.Roles.EnsureDefaultRoles(ctx)
	if err != nil {
		return fmt.Errorf("seed default roles: %w", err)
	}
	if created > 0 {
		zlog.Info("default roles created", zap.Int("count", created))
	}
	if user, err := wiring.Auth.CreateDefaultUser(ctx); err != nil {
		zlog.Warn("failed to create default user", zap.Error(err))
	} else if user != nil {
		zlog.Info("default user created", zap.String("username", user.Username))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info("starting admin server", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := wiring.Auth.DeleteExpiredSessions(gctx)
				if err != nil {
					zlog.Warn("expired session cleanup failed", zap.Error(err))
				} else if n > 0 {
					zlog.Debug("expired sessions removed", zap.Int64("count", n))
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Warn("http shutdown", zap.Error(err))
		}
		if err := wiring.Recorder.Close(shutdownCtx); err != nil {
			zlog.Warn("audit recorder did not drain", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
