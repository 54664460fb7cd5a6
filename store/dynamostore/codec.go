package dynamostore

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/usergraph/store"
)

// maxInOperands is the DynamoDB limit on IN comparison operands.
const maxInOperands = 100

func keyOf(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.IDField: &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

// keyLookup reports whether filter is a single equality on the hash key.
func keyLookup(filter store.Filter) (int64, bool) {
	if len(filter) != 1 {
		return 0, false
	}
	c := filter[0]
	if c.Field != store.IDField || len(c.Values) != 1 {
		return 0, false
	}
	return store.AsInt(c.Values[0])
}

func toItem(doc store.Document) (map[string]types.AttributeValue, error) {
	if _, ok := doc.ID(); !ok {
		return nil, ErrMissingID
	}
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (store.Document, error) {
	var raw map[string]any
	err := attributevalue.UnmarshalMapWithOptions(item, &raw, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return fromValue(raw).(store.Document), nil
}

// fromValue converts attributevalue.Number leaves to int64 or float64.
func fromValue(v any) any {
	switch t := v.(type) {
	case attributevalue.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(store.Document, len(t))
		for k, e := range t {
			out[k] = fromValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromValue(e)
		}
		return out
	}
	return store.Normalize(v)
}

// splitFilter breaks In conditions larger than maxInOperands into several filters
// whose union matches the same documents. Duplicate values are dropped first.
func splitFilter(filter store.Filter) []store.Filter {
	parts := []store.Filter{nil}
	for _, c := range filter {
		chunks := [][]any{c.Values}
		if c.Op == store.OpIn {
			chunks = chunkValues(dedupe(c.Values))
		}
		next := make([]store.Filter, 0, len(parts)*len(chunks))
		for _, p := range parts {
			for _, vals := range chunks {
				next = append(next, p.And(store.Filter{{Field: c.Field, Op: c.Op, Values: vals}}))
			}
		}
		parts = next
	}
	return parts
}

func dedupe(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		dup := false
		for _, seen := range out {
			if store.Equal(v, seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

func chunkValues(values []any) [][]any {
	var out [][]any
	for start := 0; start < len(values); start += maxInOperands {
		end := min(start+maxInOperands, len(values))
		out = append(out, values[start:end])
	}
	return out
}

// scanInput builds a Scan request whose FilterExpression mirrors filter.
func scanInput(table string, filter store.Filter) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if len(filter) == 0 {
		return input, nil
	}
	var cond expression.ConditionBuilder
	for i, c := range filter {
		next := condition(c)
		if i == 0 {
			cond = next
			continue
		}
		cond = cond.And(next)
	}
	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build filter for %s: %w", table, err)
	}
	input.FilterExpression = expr.Filter()
	input.ExpressionAttributeNames = expr.Names()
	input.ExpressionAttributeValues = expr.Values()
	return input, nil
}

func condition(c store.Condition) expression.ConditionBuilder {
	name := expression.Name(c.Field)
	if len(c.Values) == 1 {
		return name.Equal(expression.Value(c.Values[0]))
	}
	operands := make([]expression.OperandBuilder, len(c.Values)-1)
	for i, v := range c.Values[1:] {
		operands[i] = expression.Value(v)
	}
	return name.In(expression.Value(c.Values[0]), operands...)
}
