package services

import (
	"context"
	"fmt"

	"adminpanel/internal/config"
	"adminpanel/internal/models"
	"adminpanel/internal/rbac"

	"gorm.io/gorm"
)

type PermissionService struct {
	db      *gorm.DB
	catalog *rbac.Catalog
}

// NewPermissionService registers the configured extra permissions in the
// catalog and returns a service backed by db.
func NewPermissionService(db *gorm.DB, catalog *rbac.Catalog, cfg *config.Config) *PermissionService {
	for _, p := range cfg.Permissions.Extra {
		catalog.Register(rbac.Definition{
			Code:         rbac.PermissionCode(p.Code),
			Name:         p.Name,
			ResourceType: rbac.ResourceType(p.ResourceType),
		})
	}
	return &PermissionService{db: db, catalog: catalog}
}

// Catalog returns the permission catalog the service seeds from.
func (s *PermissionService) Catalog() *rbac.Catalog {
	return s.catalog
}

// EnsureCatalog inserts every catalog entry missing from the permissions
// table. Existing rows are left as they are.
func (s *PermissionService) EnsureCatalog(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range s.catalog.Definitions() {
			var p models.Permission
			err := tx.Where(models.Permission{Codename: string(d.Code)}).
				Attrs(models.Permission{Name: d.Name, ResourceType: string(d.ResourceType)}).
				FirstOrCreate(&p).Error
			if err != nil {
				return fmt.Errorf("seed permission %s: %w", d.Code, err)
			}
		}
		return nil
	})
}

// ListPermissions returns all stored permissions ordered by codename.
func (s *PermissionService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	perms := []models.Permission{}
	if err := s.db.WithContext(ctx).Order("codename ASC").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// lookup resolves codes to stored permissions inside tx. Unknown codes are
// rejected against the catalog, and field names the input key in the error.
func (s *PermissionService) lookup(tx *gorm.DB, field string, codes []string) ([]models.Permission, error) {
	seen := make(map[string]struct{}, len(codes))
	unique := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		if !s.catalog.Contains(rbac.PermissionCode(c)) {
			return nil, fieldError(field, fmt.Sprintf("Unknown permission code %q.", c))
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}
	if len(unique) == 0 {
		return []models.Permission{}, nil
	}

	var perms []models.Permission
	if err := tx.Where("codename IN ?", unique).Find(&perms).Error; err != nil {
		return nil, err
	}
	if len(perms) != len(unique) {
		return nil, fieldError(field, "Some permissions have not been seeded yet.")
	}
	return perms, nil
}
