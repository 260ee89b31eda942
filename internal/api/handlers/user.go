package handlers

import (
	"net/http"

	"adminpanel/internal/api/middleware"
	"adminpanel/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type SetPermissionsRequest struct {
	DirectPermissions []string `json:"direct_permissions" binding:"required"`
}

type PermissionsResponse struct {
	UserID            uint         `json:"user_id"`
	Role              *RoleSummary `json:"role"`
	IsSuperuser       bool         `json:"is_superuser"`
	Permissions       []string     `json:"permissions"`
	DirectPermissions []string     `json:"direct_permissions"`
}

// GetUsers returns one page of users
func (h *UserHandler) GetUsers(c *gin.Context) {
	page, err := h.userService.ListUsers(c.Request.Context(), services.UserFilter{
		Search:   c.Query("search"),
		IsActive: queryBool(c, "is_active"),
		RoleID:   queryUint(c, "role"),
		Ordering: c.Query("ordering"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     page.Count,
		"page":      page.Page,
		"page_size": page.PageSize,
		"results":   NewUserPayloads(page.Results),
	})
}

// GetUser returns a specific user
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewUserPayload(user))
}

// CreateUser creates a new user
func (h *UserHandler) CreateUser(c *gin.Context) {
	var in services.CreateUserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.userService.CreateUser(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewUserPayload(user))
}

// UpdateUser serves both PUT and PATCH; absent fields are left unchanged.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in services.UpdateUserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewUserPayload(user))
}

// DeleteUser deactivates the user instead of removing it.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.userService.Deactivate(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) ToggleStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.userService.ToggleStatus(c.Request.Context(), middleware.CurrentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewUserPayload(user))
}

// GetPermissions returns the effective and direct permissions of a user.
func (h *UserHandler) GetPermissions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, set, err := h.userService.EffectivePermissions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := PermissionsResponse{
		UserID:            user.ID,
		IsSuperuser:       user.IsSuperuser,
		Permissions:       set.Strings(),
		DirectPermissions: user.DirectPermissionCodes(),
	}
	if user.Role != nil {
		resp.Role = &RoleSummary{ID: user.Role.ID, Name: user.Role.Name}
	}
	c.JSON(http.StatusOK, resp)
}

// SetPermissions replaces the direct grants of a user.
func (h *UserHandler) SetPermissions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SetPermissionsRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.SetDirectPermissions(c.Request.Context(), id, req.DirectPermissions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewUserPayload(user))
}
