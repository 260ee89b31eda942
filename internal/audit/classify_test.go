package audit

import (
	"net/http"
	"testing"

	"adminpanel/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   models.Action
		ok     bool
	}{
		{http.MethodPost, "/api/auth/login", models.ActionLogin, true},
		{http.MethodPost, "/api/users", models.ActionCreate, true},
		{http.MethodPut, "/api/users/3", models.ActionUpdate, true},
		{http.MethodPatch, "/api/roles/2", models.ActionUpdate, true},
		{http.MethodDelete, "/api/roles/2", models.ActionDelete, true},
		{http.MethodGet, "/api/users", models.ActionView, true},
		{http.MethodGet, "/api/roles/4", models.ActionView, true},
		{http.MethodGet, "/api/permissions", "", false},
		{http.MethodGet, "/api/superusers", "", false},
		{http.MethodOptions, "/api/users", "", false},
		{http.MethodHead, "/api/users", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got, ok := Classify(tt.method, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExcluded(t *testing.T) {
	for _, p := range []string{
		"/api/auth/profile",
		"/api/auth/logout",
		"/api/auth/change-password",
		"/api/activity-logs",
		"/api/activity-logs/export",
		"/api/login-attempts",
		"/api/health",
		"/metrics",
		"/assets/app.js",
		"/favicon.ico",
	} {
		assert.True(t, Excluded(p), p)
	}

	for _, p := range []string{"/api/users", "/api/roles/1", "/api/auth/login", "/api/auth/me"} {
		assert.False(t, Excluded(p), p)
	}
}
