package models

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one page of list results.
type Page[T any] struct {
	Count    int64 `json:"count"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Results  []T   `json:"results"`
}

// NormalizePage clamps a requested page number and size.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// OrderClause maps a "field" or "-field" ordering onto a whitelisted column,
// falling back when the field is not allowed.
func OrderClause(ordering string, allowed map[string]string, fallback string) string {
	ordering = strings.TrimSpace(ordering)
	desc := strings.HasPrefix(ordering, "-")
	column, ok := allowed[strings.TrimPrefix(ordering, "-")]
	if !ok {
		return fallback
	}
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}
