// Package pagination parses ?limit=&page= for list endpoints.
package pagination

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit    = 10
	DefaultMaxLimit = 1000
)

type Pagination struct {
	Limit    int `json:"limit"`
	Offset   int `json:"offset"`
	Page     int `json:"page"`
	MaxLimit int `json:"maxLimit"`
}

// ParsePagination reads limit and page from the query. limit is capped by
// MAX_LIMIT. A malformed value writes a 400 and aborts c, so callers must
// check c.IsAborted().
func ParsePagination(c *gin.Context) Pagination {
	maxLimit := DefaultMaxLimit
	if v, ok := positive(os.Getenv("MAX_LIMIT")); ok {
		maxLimit = v
	}

	limit, ok := queryInt(c, "limit", DefaultLimit)
	if !ok {
		return Pagination{}
	}
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return Pagination{}
	}

	if limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Limit: limit, Offset: (page - 1) * limit, Page: page, MaxLimit: maxLimit}
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, ok := positive(raw)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "invalid " + key + " parameter",
		})
		return 0, false
	}
	return v, true
}

func positive(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Meta is the "pagination" object returned next to "data" in list responses.
func (p Pagination) Meta(total int64) gin.H {
	return gin.H{
		"total":     total,
		"limit":     p.Limit,
		"page":      p.Page,
		"max_limit": p.MaxLimit,
	}
}
