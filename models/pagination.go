package models

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Pagination describes one page of a newest-first listing.
type Pagination struct {
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// NewPagination computes pages = ceil(total/size) and hasMore = page < pages.
func NewPagination(page, size int, total int64) Pagination {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Pagination{
		Page:    page,
		Pages:   pages,
		Total:   total,
		HasMore: page < pages,
	}
}

// NormalizePage applies the defaults used by the messages listing.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Skip is the number of documents to skip for page.
func Skip(page, size int) int64 {
	return int64(page-1) * int64(size)
}

// ReverseMessages reverses s in place and returns it.
func ReverseMessages[T any](s []T) []T {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}
