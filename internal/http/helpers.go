package http

import (
	"net/url"
	"strings"

	"paymanager/internal/core"
	"paymanager/internal/services"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseListOptions reads status, q, sort and order from a query string.
func parseListOptions(q url.Values) (services.ListOptions, error) {
	var opts services.ListOptions
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		st, err := core.ParseStatus(s)
		if err != nil {
			return opts, err
		}
		opts.Status = st
	}
	sort, err := services.ParseSortField(q.Get("sort"))
	if err != nil {
		return opts, err
	}
	opts.Sort = sort
	opts.Query = sanitizeInput(q.Get("q"))
	switch strings.ToLower(strings.TrimSpace(q.Get("order"))) {
	case "desc":
		opts.Desc = true
	case "", "asc":
	default:
		return opts, errInvalidOrder
	}
	return opts, nil
}
