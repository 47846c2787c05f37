package datamodel

import (
	"fmt"
	"net/url"
	"strconv"
)

// Pagination windows an ordered result set. Start defaults to 0, Limit to
// "all remaining". It is only applied after a query succeeds.
type Pagination struct {
	Start *int `json:"start,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

// ParsePagination extracts "start" and "limit" query parameters. A value
// that is present but unparsable, a negative start or a non-positive limit
// is a client error.
func ParsePagination(values url.Values) (Pagination, error) {
	var p Pagination
	if raw := values.Get("start"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Pagination{}, fmt.Errorf("invalid start %q: want non-negative integer", raw)
		}
		p.Start = &n
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Pagination{}, fmt.Errorf("invalid limit %q: want positive integer", raw)
		}
		p.Limit = &n
	}
	return p, nil
}

// Paginate returns the window [start, start+limit) of items, clamped to the
// slice bounds. A start beyond the end yields an empty slice, not an error.
func Paginate[T any](items []T, p Pagination) []T {
	lo := 0
	if p.Start != nil {
		lo = *p.Start
	}
	if lo >= len(items) {
		return []T{}
	}
	hi := len(items)
	if p.Limit != nil && lo+*p.Limit < hi {
		hi = lo + *p.Limit
	}
	return items[lo:hi]
}
