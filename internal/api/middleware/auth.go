package middleware

import (
	"errors"
	"net/http"
	"strings"

	"adminpanel/internal/models"
	"adminpanel/internal/rbac"
	"adminpanel/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	userKey    = "user"
	sessionKey = "session"
)

func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthenticated(c, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthenticated(c, "Invalid authorization header format")
			return
		}

		session, err := authService.GetSession(c.Request.Context(), parts[1])
		if err != nil {
			abortUnauthenticated(c, "Invalid or expired token")
			return
		}
		if !session.User.IsActive {
			abortUnauthenticated(c, "User account is disabled")
			return
		}

		SetUser(c, &session.User)
		c.Set(sessionKey, session)

		c.Next()
	}
}

// SetUser stores the authenticated identity of the request.
func SetUser(c *gin.Context, u *models.User) {
	c.Set(userKey, u)
}

// CurrentUser returns the authenticated identity, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

func CurrentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*models.Session)
	return s
}

// Require evaluates req against the current user before the handler runs.
func Require(req rbac.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := rbac.CheckAccess(CurrentUser(c), req)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, rbac.ErrAuthenticationRequired):
			abortUnauthenticated(c, "Authentication credentials were not provided")
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "You do not have permission to perform this action",
				"code":  "permission_denied",
			})
		}
	}
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  "authentication_required",
	})
}
