package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// Archive listings are paged; snapshots are large, so pages stay small.
const (
	defaultPerPage = 25
	maxPerPage     = 100
)

// PageRequest is one page of a listing, 1-based.
type PageRequest struct {
	Page    int
	PerPage int
}

// ParsePageRequest reads page and per_page from the query. Missing values
// take the defaults and per_page is capped at maxPerPage. Values that are not
// positive integers are rejected.
func ParsePageRequest(r *http.Request) (PageRequest, error) {
	p := PageRequest{Page: 1, PerPage: defaultPerPage}

	q := r.URL.Query()
	var err error
	if p.Page, err = positiveParam(q.Get("page"), p.Page); err != nil {
		return PageRequest{}, fmt.Errorf("page %w", err)
	}
	if p.PerPage, err = positiveParam(q.Get("per_page"), p.PerPage); err != nil {
		return PageRequest{}, fmt.Errorf("per_page %w", err)
	}
	p.PerPage = min(p.PerPage, maxPerPage)
	return p, nil
}

func positiveParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer, got %q", raw)
	}
	return n, nil
}

// Offset is the number of rows before this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p PageRequest) totalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// NewPaginatedResponse wraps one page of data with its pagination metadata.
func NewPaginatedResponse(data interface{}, p PageRequest, total int64) PaginatedResponse {
	return PaginatedResponse{
		Data: data,
		Pagination: PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.totalPages(total),
		},
	}
}
