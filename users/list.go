package users

import (
	"context"
	"math"

	"github.com/jacentio/usergraph/store"
)

// Sort is a listing order.
type Sort string

const (
	SortNone     Sort = ""
	SortNameAsc  Sort = "name_asc"
	SortNameDesc Sort = "name_desc"
)

// ParseSort maps a query value to a Sort. Unknown values mean natural order.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortNameAsc, SortNameDesc:
		return Sort(s)
	}
	return SortNone
}

func (s Sort) fields() []store.SortField {
	switch s {
	case SortNameAsc:
		return []store.SortField{{Field: "name", Order: store.Ascending}}
	case SortNameDesc:
		return []store.SortField{{Field: "name", Order: store.Descending}}
	}
	return nil
}

// ListParams selects one page of users. Page and Limit start at 1.
type ListParams struct {
	Page  int64
	Limit int64
	Sort  Sort
}

// ListUsers returns one page of users without posts. The result is never nil.
func (s *Service) ListUsers(ctx context.Context, p ListParams) ([]store.Document, error) {
	if p.Page < 1 || p.Limit < 1 {
		return nil, store.ErrInvalidOptions
	}
	// An offset past MaxInt64 is beyond any collection.
	if p.Page-1 > math.MaxInt64/p.Limit {
		return []store.Document{}, nil
	}
	docs, err := s.users().FindMany(ctx, store.All(), store.FindOptions{
		Sort:  p.Sort.fields(),
		Skip:  (p.Page - 1) * p.Limit,
		Limit: p.Limit,
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}
