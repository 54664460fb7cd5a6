package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacentio/usergraph/store"
)

// Summary counts the records written by a reload.
type Summary struct {
	Users    int `json:"users"`
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
}

// Loader replaces the store contents with a referentially consistent snapshot of
// the source.
type Loader struct {
	db       store.Database
	source   Source
	registry *store.Registry
	logger   *slog.Logger
}

// NewLoader creates a new Loader. A nil registry uses store.DefaultRegistry.
func NewLoader(db store.Database, source Source, registry *store.Registry, logger *slog.Logger) *Loader {
	if registry == nil {
		registry = store.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		db:       db,
		source:   source,
		registry: registry,
		logger:   logger,
	}
}

// Reload fetches every record set, drops children whose parent was not fetched,
// clears all collections and inserts the survivors parents first.
//
// Clearing and inserting are separate store calls; a failure part way through
// leaves the store partially loaded.
func (l *Loader) Reload(ctx context.Context) (Summary, error) {
	fetched, err := l.fetchAll(ctx)
	if err != nil {
		return Summary{}, err
	}

	kept := Filter(l.registry, fetched)

	collections := l.registry.Collections()
	for _, name := range collections {
		if _, err := l.db.Collection(name).DeleteMany(ctx, store.All()); err != nil {
			return Summary{}, fmt.Errorf("clear %s: %w", name, err)
		}
	}
	for _, name := range collections {
		if err := l.db.Collection(name).InsertMany(ctx, kept[name]); err != nil {
			return Summary{}, fmt.Errorf("insert %s: %w", name, err)
		}
	}

	summary := Summary{
		Users:    len(kept[store.UsersCollection]),
		Posts:    len(kept[store.PostsCollection]),
		Comments: len(kept[store.CommentsCollection]),
	}
	l.logger.Info("seed data loaded",
		"users", summary.Users,
		"posts", summary.Posts,
		"comments", summary.Comments,
	)
	return summary, nil
}

func (l *Loader) fetchAll(ctx context.Context) (map[string][]store.Document, error) {
	fetchers := []struct {
		collection string
		fetch      func(context.Context) ([]store.Document, error)
	}{
		{store.UsersCollection, l.source.Users},
		{store.PostsCollection, l.source.Posts},
		{store.CommentsCollection, l.source.Comments},
	}

	out := make(map[string][]store.Document, len(fetchers))
	for _, f := range fetchers {
		docs, err := f.fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", f.collection, err)
		}
		l.logger.Debug("fetched upstream records", "collection", f.collection, "count", len(docs))
		out[f.collection] = docs
	}
	return out, nil
}

// Filter applies the registry's relationships in registration order: a child is
// kept only when its foreign key names a kept parent. Documents without an
// integer id are dropped from every collection.
func Filter(registry *store.Registry, fetched map[string][]store.Document) map[string][]store.Document {
	kept := make(map[string][]store.Document, len(fetched))
	for name, docs := range fetched {
		out := make([]store.Document, 0, len(docs))
		for _, d := range docs {
			if _, ok := d.ID(); ok {
				out = append(out, d)
			}
		}
		kept[name] = out
	}

	for _, rel := range registry.AllRelationships() {
		parents := make(map[int64]struct{})
		for _, id := range store.IDs(kept[rel.Parent], store.IDField) {
			parents[id] = struct{}{}
		}
		children := kept[rel.Child]
		out := make([]store.Document, 0, len(children))
		for _, d := range children {
			fk, ok := d.Int(rel.ForeignKey)
			if !ok {
				continue
			}
			if _, ok := parents[fk]; ok {
				out = append(out, d)
			}
		}
		kept[rel.Child] = out
	}
	return kept
}
