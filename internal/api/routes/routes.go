package routes

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"adminpanel/internal/api/handlers"
	"adminpanel/internal/api/middleware"
	"adminpanel/internal/audit"
	"adminpanel/internal/config"
	"adminpanel/internal/rbac"
	"adminpanel/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Wiring exposes what SetupRoutes built for bootstrap and shutdown.
type Wiring struct {
	Recorder    *audit.Recorder
	Auth        *services.AuthService
	Users       *services.UserService
	Roles       *services.RoleService
	Permissions *services.PermissionService
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger, reg *prometheus.Registry) *Wiring {
	// Audit pipeline
	metrics := audit.NewMetrics(reg)
	store := audit.NewStore(db)
	recorder := audit.NewRecorder(store, log.Named("audit"), metrics, cfg.Audit.EffectiveQueueSize())

	// Initialize services
	permissionService := services.NewPermissionService(db, rbac.NewCatalog(), cfg)
	roleService := services.NewRoleService(db, permissionService)
	authService := services.NewAuthService(db, cfg, recorder)
	userService := services.NewUserService(db, authService, permissionService)

	targets := audit.NewTargetRegistry()
	targets.Register(audit.KindUser, "users", func(ctx context.Context, id string) (*audit.Target, error) {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, err
		}
		u, err := userService.GetUser(ctx, uint(n))
		if err != nil {
			return nil, err
		}
		fields, err := audit.FieldsOf(handlers.NewUserPayload(u))
		if err != nil {
			return nil, err
		}
		return &audit.Target{Summary: u.String(), Fields: fields}, nil
	})
	targets.Register(audit.KindRole, "roles", func(ctx context.Context, id string) (*audit.Target, error) {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, err
		}
		role, err := roleService.GetRole(ctx, uint(n))
		if err != nil {
			return nil, err
		}
		fields, err := audit.FieldsOf(handlers.NewRolePayload(role))
		if err != nil {
			return nil, err
		}
		return &audit.Target{Summary: role.String(), Fields: fields}, nil
	})
	interceptor := audit.NewInterceptor(recorder, targets, middleware.CurrentUser, log.Named("audit"), metrics)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService, recorder, cfg)
	userHandler := handlers.NewUserHandler(userService)
	roleHandler := handlers.NewRoleHandler(roleService)
	permissionHandler := handlers.NewPermissionHandler(permissionService)
	activityHandler := handlers.NewActivityHandler(store, recorder)

	// Middleware
	r.Use(middleware.CORSMiddleware(cfg.CORS))
	r.Use(middleware.ErrorHandler(log))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"message": "Admin API is running",
			})
		})

		login := []gin.HandlerFunc{}
		if cfg.Security.RateLimit.Enabled {
			login = append(login, middleware.RateLimit(cfg.Security.RateLimit.RequestsPerMinute, time.Minute))
		}
		login = append(login, interceptor.Handler(), authHandler.Login)
		api.POST("/auth/login", login...)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService), interceptor.Handler())
	{
		authenticated := middleware.Require(rbac.Authenticated())
		manageUsers := middleware.Require(rbac.Permission(rbac.ManageUsers))
		manageRoles := middleware.Require(rbac.Permission(rbac.ManageRoles))
		viewLogs := middleware.Require(rbac.Permission(rbac.ViewLogs))

		auth := protected.Group("/auth", authenticated)
		{
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authHandler.GetMe)
			auth.GET("/profile", authHandler.GetMe)
			auth.PATCH("/profile", authHandler.UpdateProfile)
			auth.POST("/change-password", authHandler.ChangePassword)
		}

		// User management routes
		users := protected.Group("/users")
		{
			users.GET("", authenticated, userHandler.GetUsers)
			users.POST("", manageUsers, userHandler.CreateUser)
			users.GET("/:id", manageUsers, userHandler.GetUser)
			users.PUT("/:id", manageUsers, userHandler.UpdateUser)
			users.PATCH("/:id", manageUsers, userHandler.UpdateUser)
			users.DELETE("/:id", manageUsers, userHandler.DeleteUser)
			users.POST("/:id/toggle-status", manageUsers, userHandler.ToggleStatus)
			users.GET("/:id/permissions", manageUsers, userHandler.GetPermissions)
			users.PUT("/:id/permissions", manageUsers, userHandler.SetPermissions)
		}

		roles := protected.Group("/roles", manageRoles)
		{
			roles.GET("", roleHandler.GetRoles)
			roles.POST("", roleHandler.CreateRole)
			roles.GET("/:id", roleHandler.GetRole)
			roles.PUT("/:id", roleHandler.UpdateRole)
			roles.PATCH("/:id", roleHandler.UpdateRole)
			roles.DELETE("/:id", roleHandler.DeleteRole)
		}

		protected.GET("/permissions", authenticated, permissionHandler.GetPermissions)

		logs := protected.Group("", viewLogs)
		{
			logs.GET("/activity-logs", activityHandler.GetActivityLogs)
			logs.GET("/activity-logs/export", activityHandler.ExportActivityLogs)
			logs.GET("/login-attempts", activityHandler.GetLoginAttempts)
		}
	}

	return &Wiring{
		Recorder:    recorder,
		Auth:        authService,
		Users:       userService,
		Roles:       roleService,
		Permissions: permissionService,
	}
}
