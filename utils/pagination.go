package utils

import (
	"math"
	"strconv"
)

type Pagination struct {
	Total        int64 `json:"total"`
	CurrentPage  int   `json:"currentPage"`
	Limit        int   `json:"limit"`
	TotalPages   int   `json:"totalPages"`
	HasPrevPage  bool  `json:"hasPrevPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	PreviousPage int   `json:"previousPage"`
	NextPage     int   `json:"nextPage"`
}

// ParsePage reads page/limit query values. Bad or missing values fall back to
// page 1 and defaultLimit, and limit is capped at maxLimit.
func ParsePage(pageStr, limitStr string, defaultLimit, maxLimit int) (page, limit int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func Offset(page, limit int) int {
	return (page - 1) * limit
}

func NewPagination(total int64, page, limit int) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	previousPage := page - 1
	return Pagination{
		Total:        total,
		CurrentPage:  page,
		Limit:        limit,
		TotalPages:   totalPages,
		HasPrevPage:  previousPage > 0,
		HasNextPage:  totalPages > page,
		PreviousPage: previousPage,
		NextPage:     page + 1,
	}
}
