package models

import (
	"fmt"
	"strings"
	"time"
)

// Permission is one entry of the permission catalog, addressed by Codename.
type Permission struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Codename     string `json:"codename" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name         string `json:"name" gorm:"type:varchar(255)"`
	ResourceType string `json:"resource_type" gorm:"type:varchar(50);not null"`
}

type Role struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string       `json:"description" gorm:"type:text"`
	Permissions []Permission `json:"-" gorm:"many2many:role_permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r Role) String() string {
	return r.Name
}

// PermissionCodes returns the role's codenames sorted alphabetically.
func (r Role) PermissionCodes() []string {
	return codenames(r.Permissions)
}

// User is an identity. RoleID is nullable; role deletion clears it.
// Permissions holds the direct grants only.
type User struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	Username     string       `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	Email        string       `json:"email" gorm:"type:varchar(254);uniqueIndex;not null"`
	PasswordHash string       `json:"-" gorm:"type:varchar(255);not null"`
	FirstName    string       `json:"first_name" gorm:"type:varchar(150)"`
	LastName     string       `json:"last_name" gorm:"type:varchar(150)"`
	IsActive     bool         `json:"is_active" gorm:"not null"`
	IsStaff      bool         `json:"is_staff" gorm:"not null"`
	IsSuperuser  bool         `json:"is_superuser" gorm:"not null"`
	RoleID       *uint        `json:"role_id" gorm:"index"`
	Role         *Role        `json:"-" gorm:"constraint:OnDelete:SET NULL"`
	Permissions  []Permission `json:"-" gorm:"many2many:user_permissions"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastLoginAt  *time.Time   `json:"last_login_at"`
}

func (u User) String() string {
	return fmt.Sprintf("%s (%s)", u.Username, u.Email)
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DirectPermissionCodes returns the user's own grants, sorted.
func (u User) DirectPermissionCodes() []string {
	return codenames(u.Permissions)
}

type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Token     string    `json:"-" gorm:"type:varchar(500);uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"-" gorm:"foreignKey:UserID"`
}

func codenames(perms []Permission) []string {
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, p.Codename)
	}
	sortStrings(codes)
	return codes
}
