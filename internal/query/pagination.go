package query

import (
	"net/url"

	"github.com/mitchellh/mapstructure"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

const (
	DefaultPage         = 1
	DefaultItemsPerPage = 10
)

// PageFilters selects one page of a listing. The JSON form is part of the
// query key.
type PageFilters struct {
	Search       string `json:"search" mapstructure:"search"`
	Page         int    `json:"page" mapstructure:"page"`
	ItemsPerPage int    `json:"itemsPerPage" mapstructure:"itemsPerPage"`
}

// Normalize fills defaults for a missing or invalid page and page size.
func (f PageFilters) Normalize() PageFilters {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.ItemsPerPage < 1 {
		f.ItemsPerPage = DefaultItemsPerPage
	}
	return f
}

// Offset returns the index of the first item on the page.
func (f PageFilters) Offset() int {
	f = f.Normalize()
	return f.ItemsPerPage * (f.Page - 1)
}

// FiltersFromValues reads page filters from URL search parameters, e.g.
// "search=ivan&page=2&itemsPerPage=20". Numeric values are weakly typed.
func FiltersFromValues(values url.Values) (PageFilters, error) {
	flat := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	var f PageFilters
	if err := mapstructure.WeakDecode(flat, &f); err != nil {
		return PageFilters{}, apperrors.ErrValidation.MsgErr("invalid page filters", err)
	}
	return f.Normalize(), nil
}

// ParseFilters is FiltersFromValues over a raw query string.
func ParseFilters(rawQuery string) (PageFilters, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return PageFilters{}, apperrors.ErrValidation.MsgErr("invalid page filters", err)
	}
	return FiltersFromValues(values)
}

// TotalPages converts a raw item count into a page count.
func TotalPages(raw, perPage int) int {
	if perPage < 1 || raw <= 0 {
		return 0
	}
	return (raw + perPage - 1) / perPage
}

// Page is one page of a paginated listing. Total is the number of pages, Count
// the number of items reported by the server.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Count int `json:"count"`
}

func newPage[T any](items []T, count int, f PageFilters) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: TotalPages(count, f.ItemsPerPage), Count: count}
}
