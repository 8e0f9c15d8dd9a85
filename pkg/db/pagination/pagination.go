package pagination

import "math"

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination is bound from the page/limit query parameters.
type Pagination struct {
	Page  int `form:"page,default=1" json:"page" validate:"gte=1"`
	Limit int `form:"limit,default=10" json:"limit" validate:"gte=1,lte=100"`
}

type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// Normalize clamps out-of-range values to the defaults.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	p = p.Normalize()
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return PageInfo{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
