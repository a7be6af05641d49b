package utilities

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// PageParams reads page and limit from the query string. page defaults to 1,
// limit to DefaultPageSize and is clamped to MaxPageSize.
func PageParams(r *http.Request) (page, limit int) {
	page, limit = 1, DefaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
