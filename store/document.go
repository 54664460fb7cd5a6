package store

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
)

// IDField is the externally assigned key every collection is indexed by.
const IDField = "id"

// Document is a schema-flexible record. Fields the service does not know about are
// carried through unmodified.
type Document map[string]any

// Int returns the named field as an integer.
// Returns false when the field is missing or not an integral number.
func (d Document) Int(field string) (int64, bool) {
	return AsInt(d[field])
}

// ID returns the document's id field as an integer.
func (d Document) ID() (int64, bool) {
	return d.Int(IDField)
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Collection is the capability set the service needs from one named collection.
// Implementations do not enforce uniqueness and never retry.
type Collection interface {
	// FindOne returns the first document matching filter, or ErrNotFound.
	FindOne(ctx context.Context, filter Filter) (Document, error)

	// FindMany returns the documents matching filter, ordered and sliced per opts.
	FindMany(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error)

	// InsertOne stores a single document.
	InsertOne(ctx context.Context, doc Document) error

	// InsertMany stores docs in order. An empty slice is a no-op.
	InsertMany(ctx context.Context, docs []Document) error

	// DeleteOne removes the first document matching filter, if any.
	DeleteOne(ctx context.Context, filter Filter) error

	// DeleteMany removes every document matching filter and reports how many were removed.
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
}

// Database hands out collections by name.
type Database interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}

// AsInt converts any numeric representation produced by JSON decoding or a backend
// driver into an int64. Non-integral floats are rejected.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return AsInt(f)
	}
	return 0, false
}

// Normalize rewrites decoded JSON values into the shapes backends store:
// integral numbers become int64, other numbers float64, nested objects Documents.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case map[string]any:
		return NormalizeDocument(t)
	case Document:
		return NormalizeDocument(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	}
	return v
}

// NormalizeDocument applies Normalize to every field of m.
func NormalizeDocument(m map[string]any) Document {
	out := make(Document, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

// IDs collects the integer values of field across docs, skipping documents without one.
func IDs(docs []Document, field string) []int64 {
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		if id, ok := d.Int(field); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
