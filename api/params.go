package api

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/jacentio/usergraph/users"
)

var errInvalidPagination = errors.New("invalid pagination parameters")

// parseID parses a path id as a base-10 integer.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseListParams reads page, limit and sort from q. Missing values take the
// defaults; present values must be positive integers. limit is capped at maxLimit.
func parseListParams(q url.Values, p Pagination) (users.ListParams, error) {
	page, err := positive(q, "page", 1)
	if err != nil {
		return users.ListParams{}, err
	}
	limit, err := positive(q, "limit", p.DefaultLimit)
	if err != nil {
		return users.ListParams{}, err
	}
	if limit > p.MaxLimit {
		limit = p.MaxLimit
	}
	return users.ListParams{
		Page:  page,
		Limit: limit,
		Sort:  users.ParseSort(q.Get("sort")),
	}, nil
}

func positive(q url.Values, key string, def int64) (int64, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, errInvalidPagination
	}
	return n, nil
}
