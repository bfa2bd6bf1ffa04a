package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newContext(target string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c
}

func TestParsePagination_Defaults(t *testing.T) {
	p := ParsePagination(newContext("/"))
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.Offset)
}

func TestParsePagination_OffsetAndCap(t *testing.T) {
	t.Setenv("MAX_LIMIT", "50")

	p := ParsePagination(newContext("/?limit=500&page=3"))
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 100, p.Offset)

	meta := p.Meta(120)
	assert.EqualValues(t, 120, meta["total"])
	assert.Equal(t, 3, meta["page"])
}

func TestParsePagination_InvalidParams(t *testing.T) {
	for _, target := range []string{"/?limit=abc", "/?page=-1", "/?limit=0"} {
		c := newContext(target)
		ParsePagination(c)
		assert.True(t, c.IsAborted(), target)
	}
}
