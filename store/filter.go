package store

import (
	"math"
	"reflect"
	"sort"
)

// Op is a filter operator.
type Op int

const (
	// OpEq matches documents whose field equals the single value.
	OpEq Op = iota
	// OpIn matches documents whose field equals any of the values.
	OpIn
)

// Condition is a single field predicate.
type Condition struct {
	Field  string
	Op     Op
	Values []any
}

// Filter is a conjunction of conditions. The zero Filter matches every document.
type Filter []Condition

// All returns a filter matching every document.
func All() Filter { return nil }

// Eq builds a filter on field == value.
func Eq(field string, value any) Filter {
	return Filter{{Field: field, Op: OpEq, Values: []any{value}}}
}

// In builds a filter on field ∈ values. An empty set matches nothing.
func In[T any](field string, values []T) Filter {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Filter{{Field: field, Op: OpIn, Values: vals}}
}

// And combines filters.
func (f Filter) And(other Filter) Filter {
	out := make(Filter, 0, len(f)+len(other))
	out = append(out, f...)
	return append(out, other...)
}

// Matches evaluates the filter against doc.
func (f Filter) Matches(doc Document) bool {
	for _, c := range f {
		v, present := doc[c.Field]
		if !present {
			return false
		}
		hit := false
		for _, want := range c.Values {
			if Equal(v, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Empty reports whether some condition can never match (an In with no values).
func (f Filter) Empty() bool {
	for _, c := range f {
		if len(c.Values) == 0 {
			return true
		}
	}
	return false
}

// Order is a sort direction.
type Order int

const (
	Ascending  Order = 1
	Descending Order = -1
)

// SortField orders results by one field.
type SortField struct {
	Field string
	Order Order
}

// FindOptions controls ordering and slicing of FindMany results.
// A zero value means natural order, no offset and no cap.
type FindOptions struct {
	Sort  []SortField
	Skip  int64
	Limit int64
}

// Validate rejects negative skip or limit values.
func (o FindOptions) Validate() error {
	if o.Skip < 0 || o.Limit < 0 {
		return ErrInvalidOptions
	}
	return nil
}

// Apply sorts docs in place (stable) and returns the skip/limit window.
// Backends without native ordering use it after fetching matches.
func (o FindOptions) Apply(docs []Document) []Document {
	if len(o.Sort) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, s := range o.Sort {
				c := Compare(docs[i][s.Field], docs[j][s.Field])
				if c == 0 {
					continue
				}
				if s.Order == Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if o.Skip >= int64(len(docs)) {
		return []Document{}
	}
	docs = docs[o.Skip:]
	if o.Limit > 0 && o.Limit < int64(len(docs)) {
		docs = docs[:o.Limit]
	}
	return docs
}

// Equal compares two field values, treating all numeric representations alike.
func Equal(a, b any) bool {
	if ia, ib, ok := asInts(a, b); ok {
		return ia == ib
	}
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders values the way document stores do:
// missing/null < numbers < strings < anything else.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNumber:
		if ia, ib, ok := asInts(a, b); ok {
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return 1
			}
			return 0
		}
		fa, _ := asFloat(a)
		fb, _ := asFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	case rankString:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
	}
	return 0
}

const (
	rankNull = iota
	rankNumber
	rankString
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNull
	}
	if _, ok := asFloat(v); ok {
		return rankNumber
	}
	if _, ok := v.(string); ok {
		return rankString
	}
	return rankOther
}

// asInts reports both values as int64 when both are integral, so ids above
// 2^53 keep their precision.
func asInts(a, b any) (int64, int64, bool) {
	ia, ok := AsInt(a)
	if !ok {
		return 0, 0, false
	}
	ib, ok := AsInt(b)
	return ia, ib, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	}
	if i, ok := AsInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
