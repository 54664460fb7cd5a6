package dynamostore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is an in-memory DynamoDB keyed by the numeric id attribute. Scan ignores
// FilterExpression and returns pages of pageSize items in id order.
type fakeAPI struct {
	mu     sync.Mutex
	tables map[string]map[int64]map[string]types.AttributeValue

	pageSize int

	// unprocessed makes the next N BatchWriteItem calls report every request
	// as unprocessed.
	unprocessed int

	scans       []*dynamodb.ScanInput
	batchCalls  int
	gets        int
	createCalls []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{tables: map[string]map[int64]map[string]types.AttributeValue{}}
}

func itemID(item map[string]types.AttributeValue) int64 {
	n, ok := item["id"].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	id, _ := strconv.ParseInt(n.Value, 10, 64)
	return id
}

func (f *fakeAPI) table(name string) map[int64]map[string]types.AttributeValue {
	t, ok := f.tables[name]
	if !ok {
		t = map[int64]map[string]types.AttributeValue{}
		f.tables[name] = t
	}
	return t
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[name])
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return &dynamodb.GetItemOutput{Item: f.table(*in.TableName)[itemID(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(*in.TableName)[itemID(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.table(*in.TableName), itemID(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.unprocessed > 0 {
		f.unprocessed--
		return &dynamodb.BatchWriteItemOutput{UnprocessedItems: in.RequestItems}, nil
	}
	for _, reqs := range in.RequestItems {
		seen := map[int64]bool{}
		for _, r := range reqs {
			var id int64
			if r.PutRequest != nil {
				id = itemID(r.PutRequest.Item)
			} else {
				id = itemID(r.DeleteRequest.Key)
			}
			if seen[id] {
				return nil, errors.New("ValidationException: Provided list of item keys contains duplicates")
			}
			seen[id] = true
		}
	}
	for name, reqs := range in.RequestItems {
		t := f.table(name)
		for _, r := range reqs {
			switch {
			case r.PutRequest != nil:
				t[itemID(r.PutRequest.Item)] = r.PutRequest.Item
			case r.DeleteRequest != nil:
				delete(t, itemID(r.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *fakeAPI) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, *in.TableName)
	if _, ok := f.tables[*in.TableName]; ok {
		return nil, &types.ResourceInUseException{Message: in.TableName}
	}
	f.table(*in.TableName)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, in)

	t := f.table(*in.TableName)
	ids := make([]int64, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := 0
	if in.ExclusiveStartKey != nil {
		after := itemID(in.ExclusiveStartKey)
		for start < len(ids) && ids[start] <= after {
			start++
		}
	}
	end := len(ids)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, t[id])
	}
	if end < len(ids) {
		out.LastEvaluatedKey = keyOf(ids[end-1])
	}
	return out, nil
}
