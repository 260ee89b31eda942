package audit

import (
	"net/http"
	"strings"

	"adminpanel/internal/models"
)

// ExcludedPaths are never logged by the interceptor: own-profile access, the
// audit listings themselves, static or internal paths, and the auth routes
// whose handlers record their own activity.
var ExcludedPaths = []string{
	"/api/auth/profile",
	"/api/auth/logout",
	"/api/auth/change-password",
	"/api/activity-logs",
	"/api/login-attempts",
	"/api/health",
	"/metrics",
	"/assets/",
	"/favicon.ico",
}

// listingResources are the collections whose reads count as a view.
var listingResources = []string{"users", "roles"}

// Excluded reports whether path matches one of ExcludedPaths.
func Excluded(path string) bool {
	for _, prefix := range ExcludedPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Classify infers the semantic action of a request. The first matching rule
// wins; ok is false when the request should not be logged at all.
func Classify(method, path string) (action models.Action, ok bool) {
	switch method {
	case http.MethodPost:
		if strings.Contains(path, "login") {
			return models.ActionLogin, true
		}
		return models.ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return models.ActionUpdate, true
	case http.MethodDelete:
		return models.ActionDelete, true
	case http.MethodGet:
		if hasSegment(path, listingResources...) {
			return models.ActionView, true
		}
	}
	return "", false
}

func hasSegment(path string, names ...string) bool {
	for _, seg := range strings.Split(path, "/") {
		for _, name := range names {
			if seg == name {
				return true
			}
		}
	}
	return false
}
