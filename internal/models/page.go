package models

// Page is one page of a paginated listing
type Page[T any] struct {
	Items      []T
	PageSize   int
	PageNumber int

	// Count of all items matching the filter, not only on this page
	TotalCount int64
}

func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	size := int64(p.PageSize)
	return int((p.TotalCount + size - 1) / size)
}

func (p Page[T]) HasPrevious() bool {
	return p.PageNumber > 1
}

func (p Page[T]) HasNext() bool {
	return p.PageNumber < p.TotalPages()
}

// Offset of the first page item in the whole listing
func Offset(page int, pageSize int) int {
	return (page - 1) * pageSize
}
