// Package users implements the user graph operations: joined lookups, paginated
// listing, cascading deletes and conditional inserts.
//
// Multi-step writes (reload, delete-all, delete-user, put-user) are serialized by
// the Service; reads are not.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jacentio/usergraph/seed"
	"github.com/jacentio/usergraph/store"
)

// ErrInvalidID is returned by PutUser when the document id is not a positive integer.
var ErrInvalidID = errors.New("usergraph: user id must be a positive integer")

// Reloader replaces the store contents from an upstream source.
type Reloader interface {
	Reload(ctx context.Context) (seed.Summary, error)
}

// Service provides the user graph operations over a store.Database.
type Service struct {
	db       store.Database
	registry *store.Registry
	reloader Reloader
	logger   *slog.Logger

	// mu serializes writes
	mu sync.Mutex
}

// NewService creates a new Service. A nil registry uses store.DefaultRegistry.
func NewService(db store.Database, registry *store.Registry, reloader Reloader, logger *slog.Logger) *Service {
	if registry == nil {
		registry = store.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		registry: registry,
		reloader: reloader,
		logger:   logger,
	}
}

// Registry returns the relationship registry.
func (s *Service) Registry() *store.Registry {
	return s.registry
}

func (s *Service) users() store.Collection {
	return s.db.Collection(store.UsersCollection)
}

// Reload replaces all data with a fresh upstream snapshot.
func (s *Service) Reload(ctx context.Context) (seed.Summary, error) {
	if s.reloader == nil {
		return seed.Summary{}, errors.New("usergraph: no reloader configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloader.Reload(ctx)
}

// GetUser returns the user with its posts, each post carrying its comments.
// Returns store.ErrNotFound when no user has the id.
func (s *Service) GetUser(ctx context.Context, id int64) (store.Document, error) {
	user, err := s.users().FindOne(ctx, store.Eq(store.IDField, id))
	if err != nil {
		return nil, err
	}
	out := []store.Document{user.Clone()}
	if err := s.attach(ctx, store.UsersCollection, out); err != nil {
		return nil, err
	}
	return out[0], nil
}

// attach loads the children of parents for every relationship of collection,
// one query per relationship, and stores them under the child collection's name.
// Children are attached recursively before being grouped.
func (s *Service) attach(ctx context.Context, collection string, parents []store.Document) error {
	for _, rel := range s.registry.ChildrenOf(collection) {
		ids := store.IDs(parents, store.IDField)

		children := []store.Document{}
		if len(ids) > 0 {
			found, err := s.db.Collection(rel.Child).FindMany(ctx, store.In(rel.ForeignKey, ids), store.FindOptions{})
			if err != nil {
				return fmt.Errorf("find %s: %w", rel.Child, err)
			}
			children = found
		}
		for i := range children {
			children[i] = children[i].Clone()
		}
		if err := s.attach(ctx, rel.Child, children); err != nil {
			return err
		}

		groups := make(map[int64][]store.Document, len(parents))
		for _, c := range children {
			if fk, ok := c.Int(rel.ForeignKey); ok {
				groups[fk] = append(groups[fk], c)
			}
		}
		for _, p := range parents {
			group := []store.Document{}
			if id, ok := p.ID(); ok && groups[id] != nil {
				group = groups[id]
			}
			p[rel.Child] = group
		}
	}
	return nil
}

// DeleteAll removes every document from every registered collection.
func (s *Service) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.registry.Collections() {
		n, err := s.db.Collection(name).DeleteMany(ctx, store.All())
		if err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
		s.logger.Info("collection cleared", "collection", name, "deleted", n)
	}
	return nil
}

// DeleteUser removes the user and, walking the registry, its posts and their
// comments. The deletes are separate store calls and are not rolled back.
// Returns store.ErrNotFound when no user has the id.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.users().FindOne(ctx, store.Eq(store.IDField, id)); err != nil {
		return err
	}
	if err := s.users().DeleteOne(ctx, store.Eq(store.IDField, id)); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	n, err := s.purge(ctx, store.UsersCollection, []int64{id})
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", "userId", id, "childCount", n)
	return nil
}

// PurgeChildren deletes every descendant of a parent document that no longer
// exists. When the parent is present, for example because a reload inserted
// it again, nothing is deleted.
func (s *Service) PurgeChildren(ctx context.Context, collection string, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registry.HasChildren(collection) {
		return 0, nil
	}
	_, err := s.db.Collection(collection).FindOne(ctx, store.Eq(store.IDField, id))
	switch {
	case err == nil:
		s.logger.Debug("parent present, purge skipped", "collection", collection, "parentId", id)
		return 0, nil
	case !errors.Is(err, store.ErrNotFound):
		return 0, fmt.Errorf("find %s: %w", collection, err)
	}
	n, err := s.purge(ctx, collection, []int64{id})
	if err != nil {
		return n, err
	}
	s.logger.Info("orphans purged", "collection", collection, "parentId", id, "childCount", n)
	return n, nil
}

// purge deletes the children of ids in every child collection of parent, then
// recurses into the deleted children. It returns the number of documents deleted.
func (s *Service) purge(ctx context.Context, parent string, ids []int64) (int64, error) {
	var total int64
	for _, rel := range s.registry.ChildrenOf(parent) {
		if len(ids) == 0 {
			continue
		}
		child := s.db.Collection(rel.Child)
		filter := store.In(rel.ForeignKey, ids)

		// Child ids are collected before the delete so grandchildren can be found.
		var childIDs []int64
		if s.registry.HasChildren(rel.Child) {
			docs, err := child.FindMany(ctx, filter, store.FindOptions{})
			if err != nil {
				return total, fmt.Errorf("find %s: %w", rel.Child, err)
			}
			childIDs = store.IDs(docs, store.IDField)
		}

		n, err := child.DeleteMany(ctx, filter)
		if err != nil {
			return total, fmt.Errorf("delete %s: %w", rel.Child, err)
		}
		total += n

		n, err = s.purge(ctx, rel.Child, childIDs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PutUser inserts doc unless a user with the same id exists, in which case it
// returns store.ErrAlreadyExists.
func (s *Service) PutUser(ctx context.Context, doc store.Document) (store.Document, error) {
	id, ok := doc.ID()
	if !ok || id < 1 {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.users().FindOne(ctx, store.Eq(store.IDField, id))
	switch {
	case err == nil:
		return nil, store.ErrAlreadyExists
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if err := s.users().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	s.logger.Info("user created", "userId", id)
	return doc, nil
}
