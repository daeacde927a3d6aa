package api

import (
	"net/http"
	"strconv"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// parseLimitOffset reads limit/offset query params, silently falling back to
// the default limit (10) on anything invalid: missing, non-numeric, <= 0, or
// above the hard cap (100).
func parseLimitOffset(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// parseOrderDesc reads the "order" query param (asc/desc on height),
// defaulting to ascending for anything else.
func parseOrderDesc(r *http.Request) bool {
	return r.URL.Query().Get("order") == "desc"
}
