package shared

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// PageRequest is the normalized page/per_page pair list handlers
// accept.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest clamps page and per_page to usable bounds.
func NewPageRequest(page, perPage int) PageRequest {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Limit is the SQL LIMIT for this page.
func (p PageRequest) Limit() int { return p.PerPage }

// Offset is the SQL OFFSET for this page.
func (p PageRequest) Offset() int { return (p.Page - 1) * p.PerPage }

// Pagination is the metadata list endpoints return alongside items.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives the metadata for one result page.
func NewPagination(req PageRequest, total int) Pagination {
	if total < 0 {
		total = 0
	}
	return Pagination{
		Page:       req.Page,
		PerPage:    req.PerPage,
		Total:      total,
		TotalPages: (total + req.PerPage - 1) / req.PerPage,
	}
}
