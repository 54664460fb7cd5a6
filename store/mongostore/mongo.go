// Package mongostore implements the store gateway on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jacentio/usergraph/store"
)

// Database is a store.Database backed by one MongoDB database.
type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to cfg.URI and verifies the connection with a ping.
func Open(ctx context.Context, cfg store.Config) (*Database, error) {
	cfg.Validate()
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &Database{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Opener adapts Open for store.Handle.Connect.
func Opener(cfg store.Config) store.Opener {
	return func(ctx context.Context) (store.Database, error) {
		return Open(ctx, cfg)
	}
}

// Collection returns the named collection.
func (d *Database) Collection(name string) store.Collection {
	return &Collection{coll: d.db.Collection(name)}
}

// Close disconnects the client.
func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Collection is a store.Collection over a MongoDB collection.
type Collection struct {
	coll *mongo.Collection
}

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	if filter.Empty() {
		return nil, store.ErrNotFound
	}
	var raw bson.M
	err := c.coll.FindOne(ctx, toBSON(filter)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.coll.Name(), err)
	}
	return fromBSON(raw), nil
}

func (c *Collection) FindMany(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if filter.Empty() {
		return []store.Document{}, nil
	}

	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(toSort(opts.Sort))
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := c.coll.Find(ctx, toBSON(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}

	docs := make([]store.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	if _, err := c.coll.InsertOne(ctx, map[string]any(doc)); err != nil {
		return fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection) InsertMany(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = map[string]any(d)
	}
	if _, err := c.coll.InsertMany(ctx, batch); err != nil {
		return fmt.Errorf("insert many into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	if filter.Empty() {
		return nil
	}
	if _, err := c.coll.DeleteOne(ctx, toBSON(filter)); err != nil {
		return fmt.Errorf("delete one from %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	if filter.Empty() {
		return 0, nil
	}
	res, err := c.coll.DeleteMany(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("delete many from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}
