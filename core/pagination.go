package core

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// WithDefaults fills a zero page or limit. Negative values are left for
// Validate to reject.
func (p PageRequest) WithDefaults() PageRequest {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageSize
	}
	return p
}

func (p PageRequest) Validate() error {
	if p.Page < 1 {
		return ValidationError("", "page must be greater than 0")
	}
	if p.Limit < 1 {
		return ValidationError("", "limit must be greater than 0")
	}
	if p.Limit > MaxPageSize {
		return ValidationError("", "limit must be less than or equal to %d", MaxPageSize)
	}
	return nil
}

func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

type Page[T any] struct {
	Data       []T  `json:"data"`
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	TotalItems int  `json:"total_items"`
	HasMore    bool `json:"has_more"`
}

func NewPage[T any](data []T, req PageRequest, totalItems int) Page[T] {
	totalPages := 0
	if req.Limit > 0 {
		totalPages = (totalItems + req.Limit - 1) / req.Limit
	}
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:       data,
		Page:       req.Page,
		TotalPages: totalPages,
		TotalItems: totalItems,
		HasMore:    req.Page < totalPages,
	}
}
