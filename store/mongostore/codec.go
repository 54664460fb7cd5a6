package mongostore

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/jacentio/usergraph/store"
)

// toBSON renders a filter as a query document. Multiple conditions are joined
// with $and so two conditions on one field do not collide.
func toBSON(f store.Filter) bson.M {
	if len(f) == 0 {
		return bson.M{}
	}
	parts := make(bson.A, 0, len(f))
	for _, c := range f {
		parts = append(parts, condition(c))
	}
	if len(parts) == 1 {
		return parts[0].(bson.M)
	}
	return bson.M{"$and": parts}
}

func condition(c store.Condition) bson.M {
	switch c.Op {
	case store.OpIn:
		return bson.M{c.Field: bson.M{"$in": bson.A(c.Values)}}
	default:
		var v any
		if len(c.Values) > 0 {
			v = c.Values[0]
		}
		return bson.M{c.Field: v}
	}
}

func toSort(fields []store.SortField) bson.D {
	d := make(bson.D, 0, len(fields))
	for _, s := range fields {
		order := 1
		if s.Order == store.Descending {
			order = -1
		}
		d = append(d, bson.E{Key: s.Field, Value: order})
	}
	return d
}

// fromBSON strips the store-generated _id and normalizes driver types.
func fromBSON(raw bson.M) store.Document {
	doc := toDocument(raw)
	delete(doc, "_id")
	return doc
}

func toDocument(m map[string]any) store.Document {
	doc := make(store.Document, len(m))
	for k, v := range m {
		doc[k] = fromValue(v)
	}
	return doc
}

func fromValue(v any) any {
	switch t := v.(type) {
	case int32:
		return int64(t)
	case bson.M:
		return toDocument(t)
	case map[string]any:
		return toDocument(t)
	case bson.D:
		doc := make(store.Document, len(t))
		for _, e := range t {
			doc[e.Key] = fromValue(e.Value)
		}
		return doc
	case bson.A:
		return fromSlice(t)
	case []any:
		return fromSlice(t)
	}
	return v
}

func fromSlice(s []any) []any {
	out := make([]any, len(s))
	for i, e := range s {
		out[i] = fromValue(e)
	}
	return out
}
