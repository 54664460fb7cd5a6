package store

import (
	"context"
	"sync"
)

// Memory is an in-process Database. Insertion order is natural order.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

// NewMemory creates an empty in-memory database.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memoryCollection)}
}

// Collection returns the named collection, creating it on first use.
func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{}
		m.collections[name] = c
	}
	return c
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error { return nil }

type memoryCollection struct {
	mu   sync.RWMutex
	docs []Document
}

func (c *memoryCollection) FindOne(_ context.Context, filter Filter) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.docs {
		if filter.Matches(d) {
			return d.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCollection) FindMany(_ context.Context, filter Filter, opts FindOptions) ([]Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	out := []Document{}
	for _, d := range c.docs {
		if filter.Matches(d) {
			out = append(out, d.Clone())
		}
	}
	c.mu.RUnlock()
	return opts.Apply(out), nil
}

func (c *memoryCollection) InsertOne(_ context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc.Clone())
	return nil
}

func (c *memoryCollection) InsertMany(_ context.Context, docs []Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		c.docs = append(c.docs, d.Clone())
	}
	return nil
}

func (c *memoryCollection) DeleteOne(_ context.Context, filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.docs {
		if filter.Matches(d) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *memoryCollection) DeleteMany(_ context.Context, filter Filter) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.docs[:0]
	var n int64
	for _, d := range c.docs {
		if filter.Matches(d) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept
	return n, nil
}
