package handlers

import (
	"net/http"

	"adminpanel/internal/services"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService *services.RoleService
}

func NewRoleHandler(roleService *services.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) GetRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context(), services.RoleFilter{
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(roles),
		"results": NewRolePayloads(roles),
	})
}

func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	role, err := h.roleService.GetRole(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewRolePayload(role))
}

func (h *RoleHandler) CreateRole(c *gin.Context) {
	var in services.RoleInput
	if !bindJSON(c, &in) {
		return
	}
	role, err := h.roleService.CreateRole(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewRolePayload(role))
}

// UpdateRole serves PUT and PATCH. A permissions list replaces the whole set.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in services.RoleInput
	if !bindJSON(c, &in) {
		return
	}
	role, err := h.roleService.UpdateRole(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewRolePayload(role))
}

func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.roleService.DeleteRole(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
