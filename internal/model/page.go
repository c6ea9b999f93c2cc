package model

// PageMetadata describes one page of a paginated listing. Per-source pages
// carry the backend's values; merged pages carry the aggregate.
type PageMetadata struct {
	TotalCount  int  `json:"totalCount"`
	PageSize    int  `json:"pageSize"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// Page is one page of notifications with its metadata. A merged page is a
// Page whose items are sorted newest first and free of duplicate keys.
type Page struct {
	Items []Notification `json:"data"`
	Meta  PageMetadata   `json:"metaData"`
}

// NewPageMetadata computes metadata for a 1-based page of a listing of
// total records. It is what a well-behaved backend reports.
func NewPageMetadata(total, page, pageSize int) PageMetadata {
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}
	totalPages := (total + pageSize - 1) / pageSize
	return PageMetadata{
		TotalCount:  total,
		PageSize:    pageSize,
		CurrentPage: page,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
