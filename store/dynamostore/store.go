// Package dynamostore implements the store gateway on DynamoDB.
//
// Each collection is a table named TablePrefix+collection with a numeric "id" hash
// key. DynamoDB has no server-side ordering for scans, so sorting, skip and limit
// are applied after the matching items are read.
//
// The id is the table key, so unlike the memory and MongoDB backends a table
// holds at most one item per id: InsertMany with repeated ids keeps the last one.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/usergraph/internal/shard"
	"github.com/jacentio/usergraph/store"
)

const (
	// maxBatchSize is the BatchWriteItem request limit.
	maxBatchSize = 25

	// maxBatchAttempts bounds resubmission of unprocessed batch items.
	maxBatchAttempts = 5
)

// ErrUnprocessed is returned when a batch still has unprocessed items after
// maxBatchAttempts submissions.
var ErrUnprocessed = errors.New("usergraph: dynamodb batch left unprocessed items")

// ErrMissingID is returned when a document without a numeric id is written.
var ErrMissingID = errors.New("usergraph: document has no numeric id")

// API is the subset of *dynamodb.Client used by the store.
type API interface {
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Store provides DynamoDB-backed collections.
type Store struct {
	client API
	config store.Config
}

// New creates a new Store instance.
func New(client API, config store.Config) *Store {
	config.Validate()
	return &Store{
		client: client,
		config: config,
	}
}

// Open loads AWS configuration for cfg.Region and builds a client, honoring
// cfg.Endpoint for DynamoDB Local.
func Open(ctx context.Context, cfg store.Config) (*Store, error) {
	cfg.Validate()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	s := New(client, cfg)
	if cfg.CreateTables {
		if err := s.EnsureTables(ctx, store.DefaultRegistry().Collections()...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Opener adapts Open for store.Handle.Connect.
func Opener(cfg store.Config) store.Opener {
	return func(ctx context.Context) (store.Database, error) {
		return Open(ctx, cfg)
	}
}

// TableName maps a collection to its table.
func (s *Store) TableName(collection string) string {
	return s.config.TablePrefix + collection
}

// Collection returns the named collection.
func (s *Store) Collection(name string) store.Collection {
	return &Collection{store: s, table: s.TableName(name)}
}

// Close is a no-op; the SDK client holds no connections that need releasing.
func (s *Store) Close(context.Context) error { return nil }

// EnsureTables creates the given collections' tables if they do not exist.
func (s *Store) EnsureTables(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(s.TableName(name)),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(store.IDField), AttributeType: types.ScalarAttributeTypeN},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(store.IDField), KeyType: types.KeyTypeHash},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", s.TableName(name), err)
		}
	}
	return nil
}

// Collection is a store.Collection over one DynamoDB table.
type Collection struct {
	store *Store
	table string
}

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	if id, ok := keyLookup(filter); ok {
		return c.get(ctx, id)
	}
	docs, err := c.scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return docs[0], nil
}

func (c *Collection) FindMany(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	docs, err := c.scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	return opts.Apply(docs), nil
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	item, err := toItem(doc)
	if err != nil {
		return err
	}
	_, err = c.store.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put into %s: %w", c.table, err)
	}
	return nil
}

func (c *Collection) InsertMany(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	// A batch may not name the same key twice; the last document for an id wins,
	// as it would with one PutItem per document.
	writes := make([]keyedWrite, 0, len(docs))
	index := make(map[int64]int, len(docs))
	for _, d := range docs {
		item, err := toItem(d)
		if err != nil {
			return err
		}
		id, _ := d.ID()
		w := keyedWrite{
			id:  id,
			req: types.WriteRequest{PutRequest: &types.PutRequest{Item: item}},
		}
		if i, ok := index[id]; ok {
			writes[i] = w
			continue
		}
		index[id] = len(writes)
		writes = append(writes, w)
	}
	return c.batchWrite(ctx, writes)
}

func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	doc, err := c.FindOne(ctx, filter)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	id, ok := doc.ID()
	if !ok {
		return ErrMissingID
	}
	_, err = c.store.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key:       keyOf(id),
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", c.table, err)
	}
	return nil
}

func (c *Collection) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	docs, err := c.scan(ctx, filter)
	if err != nil {
		return 0, err
	}
	writes := make([]keyedWrite, 0, len(docs))
	for _, d := range docs {
		id, ok := d.ID()
		if !ok {
			continue
		}
		writes = append(writes, keyedWrite{
			id:  id,
			req: types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: keyOf(id)}},
		})
	}
	if err := c.batchWrite(ctx, writes); err != nil {
		return 0, err
	}
	return int64(len(writes)), nil
}

func (c *Collection) get(ctx context.Context, id int64) (store.Document, error) {
	result, err := c.store.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w", c.table, err)
	}
	if result.Item == nil {
		return nil, store.ErrNotFound
	}
	return fromItem(result.Item)
}

// scan reads every item matching filter, one paginated scan per filter chunk.
func (c *Collection) scan(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	docs := []store.Document{}
	if filter.Empty() {
		return docs, nil
	}
	for _, part := range splitFilter(filter) {
		input, err := scanInput(c.table, part)
		if err != nil {
			return nil, err
		}
		paginator := dynamodb.NewScanPaginator(c.store.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", c.table, err)
			}
			for _, raw := range page.Items {
				doc, err := fromItem(raw)
				if err != nil {
					return nil, err
				}
				// Results must agree with store.Memory for the same filter.
				if part.Matches(doc) {
					docs = append(docs, doc)
				}
			}
		}
	}
	return docs, nil
}

type keyedWrite struct {
	id  int64
	req types.WriteRequest
}

// batchWrite fans writes out across NumShards workers. A key always hashes to the
// same worker, and each worker submits its writes in chunks of maxBatchSize.
func (c *Collection) batchWrite(ctx context.Context, writes []keyedWrite) error {
	if len(writes) == 0 {
		return nil
	}
	buckets := shard.Partition(writes, c.store.config.NumShards, func(w keyedWrite) string {
		return shard.IntKey(w.id)
	})

	// Fast path for a single worker
	if len(buckets) == 1 {
		return c.writeBucket(ctx, buckets[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(buckets))

	for i, bucket := range buckets {
		wg.Add(1)
		go func(i int, bucket []keyedWrite) {
			defer wg.Done()
			if err := c.writeBucket(ctx, bucket); err != nil {
				errs <- fmt.Errorf("shard %02x: %w", i, err)
				cancel()
			}
		}(i, bucket)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	var first error
	for err := range errs {
		if first == nil && !errors.Is(err, context.Canceled) {
			first = err
		}
	}
	return first
}

func (c *Collection) writeBucket(ctx context.Context, bucket []keyedWrite) error {
	for _, chunk := range shard.Chunk(bucket, maxBatchSize) {
		reqs := make([]types.WriteRequest, len(chunk))
		for i, w := range chunk {
			reqs[i] = w.req
		}
		if err := c.submit(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

// submit sends one batch, resubmitting items DynamoDB reports as unprocessed.
func (c *Collection) submit(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{c.table: reqs}
	for attempt := 0; attempt < maxBatchAttempts; attempt++ {
		out, err := c.store.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("batch write %s: %w", c.table, err)
		}
		if len(out.UnprocessedItems[c.table]) == 0 {
			return nil
		}
		pending = map[string][]types.WriteRequest{c.table: out.UnprocessedItems[c.table]}
	}
	return fmt.Errorf("%s: %w", c.table, ErrUnprocessed)
}
