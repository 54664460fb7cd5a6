package store

import (
	"context"
	"sync"
)

// Opener establishes a backend connection.
type Opener func(ctx context.Context) (Database, error)

// Handle is the process-wide database connection. It is created empty, connected
// once before traffic is accepted, and shared by reference with every component.
// Collections obtained from an unconnected Handle fail with ErrNotInitialized.
type Handle struct {
	mu sync.RWMutex
	db Database
}

// NewHandle creates an unconnected Handle.
func NewHandle() *Handle {
	return &Handle{}
}

// Connect opens the backend. It may succeed only once. The lock is not held
// while open runs, so concurrent callers keep getting ErrNotInitialized.
func (h *Handle) Connect(ctx context.Context, open Opener) error {
	if h.Connected() {
		return ErrAlreadyConnected
	}
	db, err := open(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		_ = db.Close(ctx)
		return ErrAlreadyConnected
	}
	h.db = db
	return nil
}

// Connected reports whether Connect has succeeded.
func (h *Handle) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.db != nil
}

// Database returns the connected backend or ErrNotInitialized.
func (h *Handle) Database() (Database, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, ErrNotInitialized
	}
	return h.db, nil
}

// Collection returns a collection that resolves the backend on every call.
func (h *Handle) Collection(name string) Collection {
	return &handleCollection{h: h, name: name}
}

// Close closes the backend if it was connected.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close(ctx)
	h.db = nil
	return err
}

type handleCollection struct {
	h    *Handle
	name string
}

func (c *handleCollection) coll() (Collection, error) {
	db, err := c.h.Database()
	if err != nil {
		return nil, err
	}
	return db.Collection(c.name), nil
}

func (c *handleCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	return coll.FindOne(ctx, filter)
}

func (c *handleCollection) FindMany(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	return coll.FindMany(ctx, filter, opts)
}

func (c *handleCollection) InsertOne(ctx context.Context, doc Document) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	return coll.InsertOne(ctx, doc)
}

func (c *handleCollection) InsertMany(ctx context.Context, docs []Document) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	return coll.InsertMany(ctx, docs)
}

func (c *handleCollection) DeleteOne(ctx context.Context, filter Filter) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	return coll.DeleteOne(ctx, filter)
}

func (c *handleCollection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	coll, err := c.coll()
	if err != nil {
		return 0, err
	}
	return coll.DeleteMany(ctx, filter)
}
