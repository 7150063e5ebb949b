package common

import (
	"net/http"
	"strconv"
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Meta builds response metadata for p given the total row count.
func (p Page) Meta(total int64) Pagination {
	pages := 0
	if p.Size > 0 {
		pages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	return Pagination{Page: p.Number, PerPage: p.Size, TotalItems: int(total), TotalPages: pages}
}

// ParsePage reads page and per_page (or limit) from the query string,
// falling back to def and clamping the size to max.
func ParsePage(r *http.Request, def, max int) Page {
	q := r.URL.Query()
	p := Page{Number: 1, Size: def}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	size := q.Get("per_page")
	if size == "" {
		size = q.Get("limit")
	}
	if n, err := strconv.Atoi(size); err == nil && n > 0 {
		p.Size = n
	}
	if max > 0 && p.Size > max {
		p.Size = max
	}
	return p
}
