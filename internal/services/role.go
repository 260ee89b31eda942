package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adminpanel/internal/models"
	"adminpanel/internal/rbac"

	"gorm.io/gorm"
)

// DefaultRole is one of the roles created on bootstrap.
type DefaultRole struct {
	Name        string
	Description string
	Permissions []rbac.PermissionCode
}

var DefaultRoles = []DefaultRole{
	{
		Name:        "Super Admin",
		Description: "Full access to all system features",
		Permissions: []rbac.PermissionCode{rbac.ManageUsers, rbac.ManageRoles, rbac.ViewLogs, rbac.ManagePermissions},
	},
	{
		Name:        "Admin",
		Description: "Can manage users and view logs",
		Permissions: []rbac.PermissionCode{rbac.ManageUsers, rbac.ViewLogs},
	},
	{
		Name:        "Manager",
		Description: "Can view logs and limited user management",
		Permissions: []rbac.PermissionCode{rbac.ViewLogs},
	},
}

// RoleInput is the writable part of a role. Nil fields are left unchanged
// on update; a non-nil Permissions replaces the whole set.
type RoleInput struct {
	Name        *string   `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
}

type RoleFilter struct {
	Search   string
	Ordering string
}

type RoleService struct {
	db          *gorm.DB
	permissions *PermissionService
}

func NewRoleService(db *gorm.DB, permissions *PermissionService) *RoleService {
	return &RoleService{db: db, permissions: permissions}
}

var roleOrderings = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

// ListRoles returns every role with its permissions.
func (s *RoleService) ListRoles(ctx context.Context, f RoleFilter) ([]models.Role, error) {
	q := s.db.WithContext(ctx).Preload("Permissions")
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("name LIKE ? OR description LIKE ?", like, like)
	}
	roles := []models.Role{}
	if err := q.Order(models.OrderClause(f.Ordering, roleOrderings, "name ASC")).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole returns a role with its permissions.
func (s *RoleService) GetRole(ctx context.Context, id uint) (*models.Role, error) {
	return getRole(s.db.WithContext(ctx), id)
}

func getRole(db *gorm.DB, id uint) (*models.Role, error) {
	var role models.Role
	if err := db.Preload("Permissions").First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// CreateRole stores a new role together with its permission set.
func (s *RoleService) CreateRole(ctx context.Context, in RoleInput) (*models.Role, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fieldError("name", "This field is required.")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var created *models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		name := strings.TrimSpace(*in.Name)
		if err := uniqueRoleName(tx, name, 0); err != nil {
			return err
		}
		role := models.Role{Name: name}
		if in.Description != nil {
			role.Description = *in.Description
		}
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		if in.Permissions != nil {
			if err := s.replacePermissions(tx, &role, *in.Permissions); err != nil {
				return err
			}
		}
		var err error
		created, err = getRole(tx, role.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRole applies in to the role. Replacing the permission set happens in
// the same transaction as the field update, so readers never see a partial set.
func (s *RoleService) UpdateRole(ctx context.Context, id uint, in RoleInput) (*models.Role, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return err
		}

		changes := map[string]any{}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fieldError("name", "This field may not be blank.")
			}
			if name != role.Name {
				if err := uniqueRoleName(tx, name, role.ID); err != nil {
					return err
				}
				changes["name"] = name
			}
		}
		if in.Description != nil {
			changes["description"] = *in.Description
		}
		if len(changes) > 0 {
			if err := tx.Model(&role).Updates(changes).Error; err != nil {
				return err
			}
		}
		if in.Permissions != nil {
			if err := s.replacePermissions(tx, &role, *in.Permissions); err != nil {
				return err
			}
		}
		var err error
		updated, err = getRole(tx, role.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRole removes the role. Users that referenced it keep their direct
// grants and end up with no role.
func (s *RoleService) DeleteRole(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return err
		}
		if err := tx.Model(&models.User{}).Where("role_id = ?", role.ID).Update("role_id", nil).Error; err != nil {
			return fmt.Errorf("clear role references: %w", err)
		}
		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return err
		}
		return tx.Delete(&role).Error
	})
}

// EnsureDefaultRoles seeds the permission catalog and creates any of the
// default roles that do not exist yet. It returns how many roles it created.
func (s *RoleService) EnsureDefaultRoles(ctx context.Context) (int, error) {
	if err := s.permissions.EnsureCatalog(ctx); err != nil {
		return 0, err
	}

	created := 0
	for _, def := range DefaultRoles {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Role{}).Where("name = ?", def.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			role := models.Role{Name: def.Name, Description: def.Description}
			if err := tx.Create(&role).Error; err != nil {
				return err
			}
			codes := make([]string, 0, len(def.Permissions))
			for _, c := range def.Permissions {
				codes = append(codes, string(c))
			}
			if err := s.replacePermissions(tx, &role, codes); err != nil {
				return err
			}
			created++
			return nil
		})
		if err != nil {
			return created, fmt.Errorf("create role %s: %w", def.Name, err)
		}
	}
	return created, nil
}

func (s *RoleService) replacePermissions(tx *gorm.DB, role *models.Role, codes []string) error {
	perms, err := s.permissions.lookup(tx, "permissions", codes)
	if err != nil {
		return err
	}
	assoc := tx.Model(role).Association("Permissions")
	if len(perms) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(perms)
}

func uniqueRoleName(tx *gorm.DB, name string, exceptID uint) error {
	var count int64
	if err := tx.Model(&models.Role{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fieldError("name", "A role with this name already exists.")
	}
	return nil
}
