package shared

import "math"

// Page mirrors the paginated envelope returned by the backend list endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// NormalizePage clamps zero-based page requests.
func NormalizePage(page, size int) (int, int) {
	if size <= 0 {
		size = 10
	}
	if size > 200 {
		size = 200
	}
	if page < 0 {
		page = 0
	}
	return page, size
}

// TotalPages computes the page count for total items.
func TotalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(size)))
}
