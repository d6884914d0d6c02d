package api

import "strings"

const (
	defaultPage    = 1
	defaultPerPage = 50
	maxPerPage     = 200
)

// PageRequest asks for one page of a listing.
// Sort names a model field (Go or column name); a leading "-" sorts descending.
type PageRequest struct {
	Page    int
	PerPage int
	Sort    string
}

// NewPageRequest builds a normalized page request.
// Defaults: page=1, per_page=50. Maximum per_page is 200.
func NewPageRequest(page, perPage int, sort string) PageRequest {
	return PageRequest{Page: page, PerPage: perPage, Sort: sort}.Normalize()
}

// Normalize applies defaults and bounds
func (p PageRequest) Normalize() PageRequest {
	if p.Page <= 0 {
		p.Page = defaultPage
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	p.Sort = strings.TrimSpace(p.Sort)
	return p
}

// Offset returns the database offset for the current page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// SortField returns the requested sort field and direction
func (p PageRequest) SortField() (field string, desc bool) {
	if strings.HasPrefix(p.Sort, "-") {
		return strings.TrimPrefix(p.Sort, "-"), true
	}
	return p.Sort, false
}

// TotalPages calculates the total number of pages for a given total count.
func (p PageRequest) TotalPages(total int64) int {
	if p.PerPage <= 0 {
		return 0
	}
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		pages++
	}
	return pages
}

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Page is one page of mapped responses
type Page[T any] struct {
	Data       []T            `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewPage wraps items with pagination metadata
func NewPage[T any](items []T, p PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Data: items,
		Pagination: PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.TotalPages(total),
		},
	}
}
