// Package store provides the document store gateway for the user graph.
//
// The service keeps three related collections (users, posts, comments) consistent
// without any store-side foreign keys or transactions. This package only offers the
// primitive capabilities the service layer needs; all referential logic lives above
// it.
//
// # Capabilities
//
// Every backend implements [Database] and [Collection]:
//
//	type Collection interface {
//	    FindOne(ctx, Filter) (Document, error)
//	    FindMany(ctx, Filter, FindOptions) ([]Document, error)
//	    InsertOne(ctx, Document) error
//	    InsertMany(ctx, []Document) error
//	    DeleteOne(ctx, Filter) error
//	    DeleteMany(ctx, Filter) (int64, error)
//	}
//
// Filters support equality ([Eq]) and set membership ([In]). [FindOptions] carries
// sort, skip and limit; zero values mean natural order, no offset and no cap.
//
// # Backends
//
//   - [Memory] - in-process, used by tests and the "memory" backend
//   - mongostore - MongoDB via the official driver
//   - dynamostore - DynamoDB, one table per collection keyed by numeric id
//
// # Relationships
//
// [Registry] declares parent/child links between collections. [DefaultRegistry]
// returns users → posts (userId) → comments (postId).
//
// # Errors
//
//   - [ErrNotFound] - no document matched
//   - [ErrAlreadyExists] - id already taken
//   - [ErrNotInitialized] - the [Handle] was used before Connect
//   - [ErrInvalidOptions] - negative skip or limit
package store
