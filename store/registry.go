package store

// Collection names of the user graph.
const (
	UsersCollection    = "users"
	PostsCollection    = "posts"
	CommentsCollection = "comments"
)

// Relationship defines a parent-child link between two collections.
type Relationship struct {
	// Parent is the parent collection (e.g., "users").
	Parent string

	// Child is the child collection (e.g., "posts").
	Child string

	// ForeignKey is the child field holding the parent's id (e.g., "userId").
	ForeignKey string
}

// Registry holds all known relationships, in registration order.
// Parents must be registered before their children.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
	collections   []string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
	}
}

// DefaultRegistry returns users → posts (userId) → comments (postId).
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Relationship{Parent: UsersCollection, Child: PostsCollection, ForeignKey: "userId"})
	r.Register(Relationship{Parent: PostsCollection, Child: CommentsCollection, ForeignKey: "postId"})
	return r
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.Parent] = append(r.byParent[rel.Parent], rel)
	r.track(rel.Parent)
	r.track(rel.Child)
}

func (r *Registry) track(name string) {
	for _, c := range r.collections {
		if c == name {
			return
		}
	}
	r.collections = append(r.collections, name)
}

// ChildrenOf returns all child relationships for a given parent collection.
func (r *Registry) ChildrenOf(parent string) []Relationship {
	return r.byParent[parent]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent collection has any registered child relationships.
func (r *Registry) HasChildren(parent string) bool {
	return len(r.byParent[parent]) > 0
}

// Collections returns every collection named by a relationship, parents first.
func (r *Registry) Collections() []string {
	return r.collections
}
