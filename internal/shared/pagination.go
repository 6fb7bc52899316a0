package shared

import (
	"math"
	"net/url"
	"strconv"
)

const (
	// DefaultPage is used when the page query parameter is missing.
	DefaultPage = 1
	// DefaultLimit is used when the limit query parameter is missing.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	if page <= 0 {
		page = DefaultPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// ListFilters represents standard list filters.
type ListFilters struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Search     string `json:"search,omitempty"`
	SortBy     string `json:"sort,omitempty"`
	SortDir    string `json:"dir,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
}

// ListFiltersFromQuery reads page, limit, search, sort, dir and category.
func ListFiltersFromQuery(q url.Values) ListFilters {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = DefaultPage
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	filters := ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if raw := q.Get("category"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.CategoryID = &id
		}
	}
	return filters
}

// Offset returns the row offset of the current page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// CacheKey renders the filters as a stable cache key fragment.
func (f ListFilters) CacheKey() string {
	category := "-"
	if f.CategoryID != nil {
		category = strconv.FormatInt(*f.CategoryID, 10)
	}
	return strconv.Itoa(f.Page) + ":" + strconv.Itoa(f.Limit) + ":" + category + ":" + f.SortBy + ":" + f.SortDir + ":" + url.QueryEscape(f.Search)
}
