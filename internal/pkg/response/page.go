package response

// PageResponse is the standard wrapper for list endpoints.
type PageResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPageResponse wraps one page of items. A nil slice is encoded as [].
func NewPageResponse[T any](items []T, page, pageSize, total int) PageResponse[T] {
	if items == nil {
		items = make([]T, 0)
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	return PageResponse[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Paginate pages an already loaded slice and converts the selected items.
// Page is 1-based; out of range pages yield no items.
func Paginate[T, R any](all []T, page, pageSize int, convert func(*T) R) PageResponse[R] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = len(all)
	}

	total := len(all)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	items := make([]R, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, convert(&all[i]))
	}
	return NewPageResponse(items, page, pageSize, total)
}
