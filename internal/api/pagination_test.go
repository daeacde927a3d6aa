package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLimitOffsetDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/blocks", nil)
	limit, offset := parseLimitOffset(r)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 0, offset)
}

func TestParseLimitOffsetValid(t *testing.T) {
	r := httptest.NewRequest("GET", "/blocks?limit=50&offset=20", nil)
	limit, offset := parseLimitOffset(r)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 20, offset)
}

func TestParseLimitOffsetFallsBackOnInvalid(t *testing.T) {
	for _, q := range []string{"limit=0", "limit=-5", "limit=101", "limit=abc"} {
		r := httptest.NewRequest("GET", "/blocks?"+q, nil)
		limit, _ := parseLimitOffset(r)
		assert.Equal(t, 10, limit, "query %q should fall back to default", q)
	}
}

func TestParseOrderDesc(t *testing.T) {
	r := httptest.NewRequest("GET", "/blocks?order=desc", nil)
	assert.True(t, parseOrderDesc(r))
	r2 := httptest.NewRequest("GET", "/blocks", nil)
	assert.False(t, parseOrderDesc(r2))
}
