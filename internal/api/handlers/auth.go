package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"adminpanel/internal/api/middleware"
	"adminpanel/internal/audit"
	"adminpanel/internal/config"
	"adminpanel/internal/models"
	"adminpanel/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultJWTSecret = "admin-panel-default-secret-change-in-production"

type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	activity    audit.ActivitySink
	cfg         *config.Config
}

func NewAuthHandler(authService *services.AuthService, userService *services.UserService, activity audit.ActivitySink, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		activity:    activity,
		cfg:         cfg,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserPayload `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	// An empty body still counts as an attempt with missing credentials.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	meta := services.LoginMeta{
		IPAddress: audit.ClientIP(c.Request),
		UserAgent: c.Request.UserAgent(),
	}
	user, err := h.authService.Authenticate(c.Request.Context(), req.Username, req.Password, meta)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	case errors.Is(err, services.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "User account is disabled"})
		return
	default:
		respondError(c, err)
		return
	}

	token, expiresAt, err := h.generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	if err := h.authService.CreateSession(c.Request.Context(), user.ID, token, expiresAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	// The interceptor records the login against this identity.
	middleware.SetUser(c, user)

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      NewUserPayload(user),
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	if err := h.authService.DeleteSession(c.Request.Context(), sess.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	h.record(c, models.ActionLogout, middleware.CurrentUser(c))

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, NewUserPayload(middleware.CurrentUser(c)))
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var in services.ProfileInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewUserPayload(user))
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)
	if err := h.authService.ChangePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	h.record(c, models.ActionUpdate, user)
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// record appends an activity on behalf of handlers whose routes the
// interceptor skips.
func (h *AuthHandler) record(c *gin.Context, action models.Action, user *models.User) {
	if user == nil {
		return
	}
	kind := string(audit.KindUser)
	id := strconv.FormatUint(uint64(user.ID), 10)
	ip := audit.ClientIP(c.Request)
	rec := &models.ActivityLog{
		UserID:        user.ID,
		Action:        action,
		TargetType:    &kind,
		TargetID:      &id,
		TargetSummary: user.String(),
		UserAgent:     c.Request.UserAgent(),
	}
	if ip != "" {
		rec.IPAddress = &ip
	}
	h.activity.Activity(rec)
}

// generateToken generates a JWT token for the user
func (h *AuthHandler) generateToken(user *models.User) (string, time.Time, error) {
	expiresIn, err := time.ParseDuration(h.cfg.JWT.ExpiresIn)
	if err != nil {
		expiresIn = 24 * time.Hour
	}

	now := time.Now()
	expiresAt := now.Add(expiresIn)

	secret := h.cfg.JWT.Secret
	if secret == "" {
		secret = defaultJWTSecret
	}

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"jti":      uuid.NewString(),
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
		"iss":      h.cfg.JWT.Issuer,
	}
	if user.Role != nil {
		claims["role"] = user.Role.Name
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}
