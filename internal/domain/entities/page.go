package entities

// DefaultPageSize is the number of products fetched per page
const DefaultPageSize = 10

// PageRequest addresses one page of a query, counting from 1
type PageRequest struct {
	Page int `json:"page" validate:"gte=1"`
	Size int `json:"size" validate:"gte=1,lte=100"`
}

// NewPageRequest returns a request for page n at the default size
func NewPageRequest(n int) PageRequest {
	return PageRequest{Page: n, Size: DefaultPageSize}
}

// Offset returns the index of the first item on the page
func (r PageRequest) Offset() int {
	if r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.Size
}

// Page is one slice of query results plus the total number of matches
type Page struct {
	Items      []*Product `json:"items"`
	TotalCount int        `json:"total_count"`
}

// HasNext reports whether results exist beyond this page
func (p *Page) HasNext(req PageRequest) bool {
	return req.Page*req.Size < p.TotalCount
}
