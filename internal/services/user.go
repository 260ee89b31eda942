package services

import (
	"context"
	"errors"
	"strings"

	"adminpanel/internal/models"
	"adminpanel/internal/rbac"

	"gorm.io/gorm"
)

var ErrSelfDeactivation = errors.New("cannot deactivate your own account")

type CreateUserInput struct {
	Username          string   `json:"username" validate:"required,max=150"`
	Email             string   `json:"email" validate:"required,email,max=254"`
	Password          string   `json:"password" validate:"required"`
	FirstName         string   `json:"first_name" validate:"max=150"`
	LastName          string   `json:"last_name" validate:"max=150"`
	IsActive          *bool    `json:"is_active"`
	IsStaff           bool     `json:"is_staff"`
	IsSuperuser       bool     `json:"is_superuser"`
	RoleID            *uint    `json:"role_id"`
	DirectPermissions []string `json:"direct_permissions"`
}

// UpdateUserInput holds the fields of a partial update. A RoleID of zero
// removes the role; nil leaves it unchanged.
type UpdateUserInput struct {
	Username          *string   `json:"username" validate:"omitnil,min=1,max=150"`
	Email             *string   `json:"email" validate:"omitnil,email,max=254"`
	Password          *string   `json:"password"`
	FirstName         *string   `json:"first_name" validate:"omitnil,max=150"`
	LastName          *string   `json:"last_name" validate:"omitnil,max=150"`
	IsActive          *bool     `json:"is_active"`
	IsStaff           *bool     `json:"is_staff"`
	IsSuperuser       *bool     `json:"is_superuser"`
	RoleID            *uint     `json:"role_id"`
	DirectPermissions *[]string `json:"direct_permissions"`
}

// ProfileInput is what a user may change about themselves.
type ProfileInput struct {
	Email     *string `json:"email" validate:"omitnil,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string `json:"last_name" validate:"omitnil,max=150"`
}

type UserFilter struct {
	Search   string
	IsActive *bool
	RoleID   *uint
	Ordering string
	Page     int
	PageSize int
}

type UserService struct {
	db          *gorm.DB
	authService *AuthService
	permissions *PermissionService
}

func NewUserService(db *gorm.DB, authService *AuthService, permissions *PermissionService) *UserService {
	return &UserService{
		db:          db,
		authService: authService,
		permissions: permissions,
	}
}

var userOrderings = map[string]string{
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login_at",
}

// ListUsers returns one page of users with their grants loaded.
func (s *UserService) ListUsers(ctx context.Context, f UserFilter) (models.Page[models.User], error) {
	filters := func(q *gorm.DB) *gorm.DB {
		if term := strings.TrimSpace(f.Search); term != "" {
			like := "%" + term + "%"
			q = q.Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
		}
		if f.IsActive != nil {
			q = q.Where("is_active = ?", *f.IsActive)
		}
		if f.RoleID != nil {
			q = q.Where("role_id = ?", *f.RoleID)
		}
		return q
	}

	page := models.Page[models.User]{Results: []models.User{}}
	page.Page, page.PageSize = models.NormalizePage(f.Page, f.PageSize)

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Scopes(filters).Count(&page.Count).Error; err != nil {
		return page, err
	}
	err := db.Scopes(filters).
		Preload("Role.Permissions").
		Preload("Permissions").
		Order(models.OrderClause(f.Ordering, userOrderings, "created_at DESC") + ", id DESC").
		Limit(page.PageSize).
		Offset((page.Page - 1) * page.PageSize).
		Find(&page.Results).Error
	return page, err
}

// GetUser returns a specific user by ID
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return loadUser(s.db.WithContext(ctx).Where("id = ?", id))
}

// CreateUser creates a new user
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.authService.CheckPasswordPolicy("password", in.Password); err != nil {
		return nil, err
	}
	hashedPassword, err := s.authService.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var created *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueUserField(tx, "username", in.Username, 0); err != nil {
			return err
		}
		if err := uniqueUserField(tx, "email", in.Email, 0); err != nil {
			return err
		}

		user := models.User{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hashedPassword,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			IsActive:     true,
			IsStaff:      in.IsStaff,
			IsSuperuser:  in.IsSuperuser,
		}
		if in.IsActive != nil {
			user.IsActive = *in.IsActive
		}
		if in.RoleID != nil && *in.RoleID != 0 {
			if err := roleExists(tx, *in.RoleID); err != nil {
				return err
			}
			user.RoleID = in.RoleID
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if len(in.DirectPermissions) > 0 {
			if err := s.replaceDirect(tx, user.ID, in.DirectPermissions); err != nil {
				return err
			}
		}
		var err error
		created, err = loadUser(tx.Where("id = ?", user.ID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateUser applies the non-nil fields of in. Deactivating a user ends its
// sessions.
func (s *UserService) UpdateUser(ctx context.Context, id uint, in UpdateUserInput) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if in.Password != nil {
		if err := s.authService.CheckPasswordPolicy("password", *in.Password); err != nil {
			return nil, err
		}
		hashedPassword, err := s.authService.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hashedPassword
	}

	var updated *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if in.Username != nil {
			username := strings.TrimSpace(*in.Username)
			if username == "" {
				return fieldError("username", "This field may not be blank.")
			}
			if username != user.Username {
				if err := uniqueUserField(tx, "username", username, user.ID); err != nil {
					return err
				}
			}
			changes["username"] = username
		}
		if in.Email != nil {
			email := strings.TrimSpace(*in.Email)
			if email != user.Email {
				if err := uniqueUserField(tx, "email", email, user.ID); err != nil {
					return err
				}
			}
			changes["email"] = email
		}
		if in.FirstName != nil {
			changes["first_name"] = *in.FirstName
		}
		if in.LastName != nil {
			changes["last_name"] = *in.LastName
		}
		if in.IsActive != nil {
			changes["is_active"] = *in.IsActive
		}
		if in.IsStaff != nil {
			changes["is_staff"] = *in.IsStaff
		}
		if in.IsSuperuser != nil {
			changes["is_superuser"] = *in.IsSuperuser
		}
		if in.RoleID != nil {
			if *in.RoleID == 0 {
				changes["role_id"] = nil
			} else {
				if err := roleExists(tx, *in.RoleID); err != nil {
					return err
				}
				changes["role_id"] = *in.RoleID
			}
		}

		if len(changes) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(changes).Error; err != nil {
				return err
			}
		}
		if in.DirectPermissions != nil {
			if err := s.replaceDirect(tx, user.ID, *in.DirectPermissions); err != nil {
				return err
			}
		}
		if in.IsActive != nil && !*in.IsActive {
			if err := deleteUserSessions(tx, user.ID); err != nil {
				return err
			}
		}
		var err error
		updated, err = loadUser(tx.Where("id = ?", user.ID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateProfile changes the caller's own contact details.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return s.UpdateUser(ctx, id, UpdateUserInput{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
}

// Deactivate marks the user inactive. Users are never removed so their
// activity history keeps its actor.
func (s *UserService) Deactivate(ctx context.Context, actorID, id uint) (*models.User, error) {
	if actorID == id {
		return nil, ErrSelfDeactivation
	}
	inactive := false
	return s.UpdateUser(ctx, id, UpdateUserInput{IsActive: &inactive})
}

// ToggleStatus flips the active flag of the user.
func (s *UserService) ToggleStatus(ctx context.Context, actorID, id uint) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive && actorID == id {
		return nil, ErrSelfDeactivation
	}
	next := !user.IsActive
	return s.UpdateUser(ctx, id, UpdateUserInput{IsActive: &next})
}

// SetDirectPermissions replaces the user's direct grants.
func (s *UserService) SetDirectPermissions(ctx context.Context, id uint, codes []string) (*models.User, error) {
	return s.UpdateUser(ctx, id, UpdateUserInput{DirectPermissions: &codes})
}

// EffectivePermissions resolves the current permission set of a user.
func (s *UserService) EffectivePermissions(ctx context.Context, id uint) (*models.User, rbac.PermissionSet, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, rbac.Resolve(user), nil
}

func (s *UserService) replaceDirect(tx *gorm.DB, userID uint, codes []string) error {
	perms, err := s.permissions.lookup(tx, "direct_permissions", codes)
	if err != nil {
		return err
	}
	assoc := tx.Model(&models.User{ID: userID}).Association("Permissions")
	if len(perms) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(perms)
}

func uniqueUserField(tx *gorm.DB, column, value string, exceptID uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where(column+" = ? AND id <> ?", value, exceptID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fieldError(column, "A user with that "+column+" already exists.")
	}
	return nil
}

func roleExists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Role{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fieldError("role_id", "Role does not exist.")
	}
	return nil
}
