package rbac

import (
	"errors"
	"fmt"

	"adminpanel/internal/models"
)

var (
	// ErrAuthenticationRequired means no active identity was presented.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrPermissionDenied means the identity lacks the required code.
	ErrPermissionDenied = errors.New("permission denied")
)

// AccessError carries the denial kind and the code that was required.
type AccessError struct {
	Kind     error
	Required PermissionCode
}

func (e *AccessError) Error() string {
	if e.Required != "" {
		return fmt.Sprintf("%s: requires %s", e.Kind, e.Required)
	}
	return e.Kind.Error()
}

func (e *AccessError) Unwrap() error {
	return e.Kind
}

type requirementKind int

const (
	kindPublic requirementKind = iota
	kindAuthenticated
	kindPermission
)

// Requirement is what an operation demands from the caller.
type Requirement struct {
	kind requirementKind
	code PermissionCode
}

// Public operations are always allowed.
func Public() Requirement { return Requirement{kind: kindPublic} }

// Authenticated operations need an active identity.
func Authenticated() Requirement { return Requirement{kind: kindAuthenticated} }

// Permission operations need an active identity holding code.
func Permission(code PermissionCode) Requirement {
	return Requirement{kind: kindPermission, code: code}
}

func (r Requirement) String() string {
	switch r.kind {
	case kindPublic:
		return "public"
	case kindAuthenticated:
		return "authenticated"
	default:
		return "permission:" + string(r.code)
	}
}

// CheckAccess decides whether u may run an operation carrying req. It
// returns nil on allow and an *AccessError otherwise. It never writes state.
func CheckAccess(u *models.User, req Requirement) error {
	if req.kind == kindPublic {
		return nil
	}
	if u == nil || !u.IsActive {
		return &AccessError{Kind: ErrAuthenticationRequired}
	}
	if req.kind == kindAuthenticated {
		return nil
	}
	if !HasPermission(u, req.code) {
		return &AccessError{Kind: ErrPermissionDenied, Required: req.code}
	}
	return nil
}
