package users

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/jacentio/usergraph/store"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want Sort
	}{
		{"name_asc", SortNameAsc},
		{"name_desc", SortNameDesc},
		{"", SortNone},
		{"NAME_ASC", SortNone},
		{"age_asc", SortNone},
	}
	for _, tt := range tests {
		if got := ParseSort(tt.in); got != tt.want {
			t.Errorf("ParseSort(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// twentyFive inserts users 1..25 whose names sort in reverse id order.
func twentyFive(t *testing.T) *store.Memory {
	t.Helper()
	db := store.NewMemory()
	docs := make([]store.Document, 25)
	for i := range docs {
		docs[i] = store.Document{"id": int64(i + 1), "name": fmt.Sprintf("user-%02d", 25-i)}
	}
	mustInsert(t, db, store.UsersCollection, docs...)
	return db
}

func TestListUsers_Pagination(t *testing.T) {
	svc := NewService(twentyFive(t), nil, nil, nil)

	got, err := svc.ListUsers(context.Background(), ListParams{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	ids := store.IDs(got, "id")
	if len(ids) != 10 {
		t.Fatalf("expected 10 users, got %d", len(ids))
	}
	for i, id := range ids {
		if id != int64(11+i) {
			t.Errorf("expected natural ranks 11-20, got %v", ids)
			break
		}
	}
}

func TestListUsers_LastPageAndBeyond(t *testing.T) {
	svc := NewService(twentyFive(t), nil, nil, nil)
	ctx := context.Background()

	got, err := svc.ListUsers(ctx, ListParams{Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 users on page 3, got %d", len(got))
	}

	got, err = svc.ListUsers(ctx, ListParams{Page: 9, Limit: 10})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil page, got %#v", got)
	}
}

func TestListUsers_HugePage(t *testing.T) {
	svc := NewService(twentyFive(t), nil, nil, nil)

	got, err := svc.ListUsers(context.Background(), ListParams{Page: math.MaxInt64, Limit: 10})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil page, got %#v", got)
	}
}

func TestListUsers_SortByName(t *testing.T) {
	svc := NewService(twentyFive(t), nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		sort Sort
		less func(a, b string) bool
	}{
		{SortNameAsc, func(a, b string) bool { return a <= b }},
		{SortNameDesc, func(a, b string) bool { return a >= b }},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			got, err := svc.ListUsers(ctx, ListParams{Page: 1, Limit: 25, Sort: tt.sort})
			if err != nil {
				t.Fatalf("ListUsers failed: %v", err)
			}
			for i := 1; i < len(got); i++ {
				prev, cur := got[i-1]["name"].(string), got[i]["name"].(string)
				if !tt.less(prev, cur) {
					t.Errorf("expected ordered names, got %q before %q", prev, cur)
				}
			}
		})
	}
}

func TestListUsers_InvalidParams(t *testing.T) {
	svc := NewService(store.NewMemory(), nil, nil, nil)
	for _, p := range []ListParams{{Page: 0, Limit: 10}, {Page: 1, Limit: 0}, {Page: -1, Limit: -1}} {
		if _, err := svc.ListUsers(context.Background(), p); !errors.Is(err, store.ErrInvalidOptions) {
			t.Errorf("expected ErrInvalidOptions for %+v, got %v", p, err)
		}
	}
}
