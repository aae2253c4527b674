package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination holds the page requested by ?page=&limit= and, after
// ComputeMeta, the totals returned to the client.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination reads limit and page, falling back to defaults on bad input.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{Limit: DefaultLimit, Page: 1}

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			p.Limit = min(limit, MaxLimit)
		}
	}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			p.Page = page
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta fills the totals once the item count is known.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = p.Page*p.Limit < total
}
