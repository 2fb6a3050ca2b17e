package httputil

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Page bounds for list endpoints.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type pageQuery struct {
	Offset *int `form:"offset"`
	Limit  *int `form:"limit"`
}

// ParsePagination reads the offset and limit query parameters. Offset defaults to 0
// and limit to DefaultPageLimit; limit must stay within 1..MaxPageLimit.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	var q pageQuery
	bindErr := c.ShouldBindQuery(&q)

	offset, limit = 0, DefaultPageLimit
	if q.Offset != nil {
		offset = *q.Offset
	}
	if q.Limit != nil {
		limit = *q.Limit
	}

	// A failed bind leaves the offending field nil and stops at the first bad field.
	offsetInvalid := bindErr != nil && q.Offset == nil && c.Query("offset") != ""
	if offsetInvalid || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset parameter: must be a non-negative integer")
	}
	if bindErr != nil || limit < 1 || limit > MaxPageLimit {
		return 0, 0, fmt.Errorf("invalid limit parameter: must be between 1 and %d", MaxPageLimit)
	}
	return offset, limit, nil
}
