package types

const (
	// DefaultListLimit applies when a list request omits the limit.
	DefaultListLimit = 100
	// MaxListLimit caps the page size a client can request.
	MaxListLimit = 1000
)

// ListParams bounds offset pagination for list endpoints.
type ListParams struct {
	Limit  int
	Offset int
}

// Normalize clamps the params to safe bounds, applying the default limit
// for unset values and discarding negative offsets.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageInfo carries pagination metadata for list responses.
type PageInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ResponseMeta contains non-payload metadata returned alongside API
// response data.
type ResponseMeta struct {
	Pagination *PageInfo `json:"pagination,omitempty"`
}
