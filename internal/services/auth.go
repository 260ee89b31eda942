package services

import (
	"context"
	"errors"
	"time"

	"adminpanel/internal/audit"
	"adminpanel/internal/config"
	"adminpanel/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginMeta is the request provenance stored with a login attempt.
type LoginMeta struct {
	IPAddress string
	UserAgent string
}

type AuthService struct {
	db       *gorm.DB
	cfg      *config.Config
	attempts audit.LoginAttemptSink
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, attempts audit.LoginAttemptSink) *AuthService {
	return &AuthService{db: db, cfg: cfg, attempts: attempts, now: time.Now}
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Security.BcryptCost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *AuthService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// CheckPasswordPolicy validates a new password against the configured rules.
func (s *AuthService) CheckPasswordPolicy(field, password string) error {
	if len([]rune(password)) < s.cfg.Security.PasswordMinLength {
		return fieldError(field, "This password is too short.")
	}
	return nil
}

// Authenticate verifies credentials and returns the user with its grants
// loaded. Every call records exactly one login attempt, successful or not.
func (s *AuthService) Authenticate(ctx context.Context, username, password string, meta LoginMeta) (*models.User, error) {
	attempt := &models.LoginAttempt{
		Username:  username,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	defer func() { s.attempts.LoginAttempt(attempt) }()

	if username == "" || password == "" {
		attempt.FailureReason = "missing credentials"
		return nil, ErrMissingCredentials
	}

	user, err := loadUser(s.db.WithContext(ctx).Where("username = ?", username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			attempt.FailureReason = "unknown username"
			return nil, ErrInvalidCredentials
		}
		attempt.FailureReason = "lookup failed"
		return nil, err
	}

	if !s.VerifyPassword(user.PasswordHash, password) {
		attempt.FailureReason = "invalid password"
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		attempt.FailureReason = "account disabled"
		return nil, ErrAccountDisabled
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("last_login_at", now).Error; err != nil {
		attempt.FailureReason = "update failed"
		return nil, err
	}
	user.LastLoginAt = &now
	attempt.Success = true
	return user, nil
}

// CreateDefaultUser creates the bootstrap superuser when no user exists.
func (s *AuthService) CreateDefaultUser(ctx context.Context) (*models.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	def := s.cfg.DefaultUser
	if def.Username == "" || def.Password == "" {
		return nil, errors.New("default user requires a username and password")
	}
	hashedPassword, err := s.HashPassword(def.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     def.Username,
		Email:        def.Email,
		PasswordHash: hashedPassword,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	}
	var role models.Role
	if err := s.db.WithContext(ctx).Where("name = ?", DefaultRoles[0].Name).First(&role).Error; err == nil {
		user.RoleID = &role.ID
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword rotates the password of user after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	if !s.VerifyPassword(user.PasswordHash, current) {
		return fieldError("current_password", "Current password is incorrect.")
	}
	if err := s.CheckPasswordPolicy("new_password", next); err != nil {
		return err
	}
	hashedPassword, err := s.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("password_hash", hashedPassword).Error; err != nil {
		return err
	}
	user.PasswordHash = hashedPassword
	return nil
}

// CreateSession creates a new session record
func (s *AuthService) CreateSession(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	session := &models.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return s.db.WithContext(ctx).Create(session).Error
}

// GetSession retrieves a live session by token with the user's grants loaded.
func (s *AuthService) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, s.now()).
		Preload("User.Role.Permissions").
		Preload("User.Permissions").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// DeleteSession deletes a session
func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
}

// DeleteExpiredSessions removes expired sessions
func (s *AuthService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// deleteUserSessions ends every session of a user, used on deactivation.
func deleteUserSessions(tx *gorm.DB, userID uint) error {
	return tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error
}

func loadUser(q *gorm.DB) (*models.User, error) {
	var user models.User
	if err := q.Preload("Role.Permissions").Preload("Permissions").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
