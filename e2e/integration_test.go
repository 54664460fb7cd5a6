//go:build e2e

// Package e2e runs the user graph against real backends.
//
// Run with: go test -tags=e2e -v ./e2e/...
//
// MONGO_URI enables the MongoDB suite. DYNAMODB_ENDPOINT (DynamoDB Local) or
// USERGRAPH_E2E_AWS=1 (real account, AWS_REGION) enables the DynamoDB suite.
// Each run uses its own database name and table prefix and removes its data
// afterwards.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/usergraph/seed"
	"github.com/jacentio/usergraph/store"
	"github.com/jacentio/usergraph/store/dynamostore"
	"github.com/jacentio/usergraph/store/mongostore"
	"github.com/jacentio/usergraph/users"
)

var testID string

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	fmt.Printf("Test ID: %s\n", testID)
	os.Exit(m.Run())
}

type backend struct {
	db      store.Database
	cleanup func()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mongoBackend(t *testing.T) backend {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	cfg := store.DefaultConfig()
	cfg.URI = uri
	cfg.Database = "usergraph-e2e-" + testID

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := mongostore.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	return backend{
		db: db,
		cleanup: func() {
			wipe(db)
			_ = db.Close(context.Background())
		},
	}
}

func dynamoBackend(t *testing.T) backend {
	t.Helper()
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	if endpoint == "" && os.Getenv("USERGRAPH_E2E_AWS") != "1" {
		t.Skip("DYNAMODB_ENDPOINT not set")
	}
	cfg := store.DefaultConfig()
	cfg.Backend = store.BackendDynamoDB
	cfg.Endpoint = endpoint
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Region = region
	}
	cfg.TablePrefix = "usergraph-e2e-" + testID + "-"
	cfg.NumShards = 4

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	s := dynamostore.New(client, cfg)

	collections := store.DefaultRegistry().Collections()
	if err := s.EnsureTables(ctx, collections...); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	for _, c := range collections {
		in := &dynamodb.DescribeTableInput{TableName: aws.String(s.TableName(c))}
		if err := waiter.Wait(ctx, in, time.Minute); err != nil {
			t.Fatalf("wait for table %s: %v", s.TableName(c), err)
		}
	}

	return backend{
		db: s,
		cleanup: func() {
			ctx := context.Background()
			for _, c := range collections {
				_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(s.TableName(c))})
				if err != nil {
					fmt.Printf("Failed to delete table %s: %v\n", s.TableName(c), err)
				}
			}
		},
	}
}

func wipe(db store.Database) {
	for _, c := range store.DefaultRegistry().Collections() {
		_, _ = db.Collection(c).DeleteMany(context.Background(), store.All())
	}
}

// forEachBackend runs fn against every configured backend with a clean
// database per subtest.
func forEachBackend(t *testing.T, fn func(t *testing.T, db store.Database)) {
	backends := map[string]func(*testing.T) backend{
		"mongo":    mongoBackend,
		"dynamodb": dynamoBackend,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			defer b.cleanup()
			wipe(b.db)
			fn(t, b.db)
		})
	}
}

// staticSource serves a fixed snapshot in place of the upstream API.
type staticSource struct {
	users, posts, comments []store.Document
}

func (s staticSource) Users(context.Context) ([]store.Document, error)    { return s.users, nil }
func (s staticSource) Posts(context.Context) ([]store.Document, error)    { return s.posts, nil }
func (s staticSource) Comments(context.Context) ([]store.Document, error) { return s.comments, nil }

func snapshot() staticSource {
	var src staticSource
	for u := int64(1); u <= 3; u++ {
		src.users = append(src.users, store.Document{
			"id":       u,
			"name":     fmt.Sprintf("User %d", u),
			"username": fmt.Sprintf("user%d", u),
			"address":  store.Document{"city": "Gwenborough", "geo": store.Document{"lat": "-37.3159"}},
		})
		for p := int64(1); p <= 2; p++ {
			postID := u*10 + p
			src.posts = append(src.posts, store.Document{"id": postID, "userId": u, "title": "post"})
			src.comments = append(src.comments, store.Document{"id": postID * 10, "postId": postID, "body": "comment"})
		}
	}
	// Orphans are dropped by the loader.
	src.posts = append(src.posts, store.Document{"id": int64(999), "userId": int64(42), "title": "orphan"})
	src.comments = append(src.comments, store.Document{"id": int64(9990), "postId": int64(999), "body": "orphan"})
	return src
}

func newService(db store.Database) *users.Service {
	registry := store.DefaultRegistry()
	loader := seed.NewLoader(db, snapshot(), registry, quietLogger())
	return users.NewService(db, registry, loader, quietLogger())
}

func TestReload(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db store.Database) {
		ctx := context.Background()
		svc := newService(db)

		summary, err := svc.Reload(ctx)
		if err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		want := seed.Summary{Users: 3, Posts: 6, Comments: 6}
		if summary != want {
			t.Errorf("expected %+v, got %+v", want, summary)
		}

		// A second load replaces rather than appends.
		if _, err := svc.Reload(ctx); err != nil {
			t.Fatalf("second Reload() error = %v", err)
		}
		posts, err := db.Collection("posts").FindMany(ctx, store.All(), store.FindOptions{})
		if err != nil {
			t.Fatalf("FindMany() error = %v", err)
		}
		if len(posts) != 6 {
			t.Errorf("expected 6 posts after reload, got %d", len(posts))
		}
	})
}

func TestGetUser_Aggregates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db store.Database) {
		ctx := context.Background()
		svc := newService(db)
		if _, err := svc.Reload(ctx); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}

		user, err := svc.GetUser(ctx, 2)
		if err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
		if _, ok := user["_id"]; ok {
			t.Error("expected _id to be stripped")
		}
		address, ok := user["address"].(store.Document)
		if !ok || address["city"] != "Gwenborough" {
			t.Errorf("expected nested address to survive, got %#v", user["address"])
		}
		posts, ok := user["posts"].([]store.Document)
		if !ok || len(posts) != 2 {
			t.Fatalf("expected 2 posts, got %#v", user["posts"])
		}
		for _, p := range posts {
			comments, ok := p["comments"].([]store.Document)
			if !ok || len(comments) != 1 {
				t.Errorf("post %v: expected 1 comment, got %#v", p["id"], p["comments"])
			}
		}

		if _, err := svc.GetUser(ctx, 42); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteUser_Cascades(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db store.Database) {
		ctx := context.Background()
		svc := newService(db)
		if _, err := svc.Reload(ctx); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}

		if err := svc.DeleteUser(ctx, 1); err != nil {
			t.Fatalf("DeleteUser() error = %v", err)
		}
		if _, err := svc.GetUser(ctx, 1); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}

		posts, err := db.Collection("posts").FindMany(ctx, store.Eq("userId", int64(1)), store.FindOptions{})
		if err != nil {
			t.Fatalf("FindMany(posts) error = %v", err)
		}
		if len(posts) != 0 {
			t.Errorf("expected posts of user 1 removed, got %d", len(posts))
		}
		comments, err := db.Collection("comments").FindMany(ctx, store.In("postId", []int64{11, 12}), store.FindOptions{})
		if err != nil {
			t.Fatalf("FindMany(comments) error = %v", err)
		}
		if len(comments) != 0 {
			t.Errorf("expected comments of user 1 removed, got %d", len(comments))
		}

		// Other users keep their data.
		user, err := svc.GetUser(ctx, 2)
		if err != nil {
			t.Fatalf("GetUser(2) error = %v", err)
		}
		if posts, _ := user["posts"].([]store.Document); len(posts) != 2 {
			t.Errorf("expected user 2 to keep 2 posts, got %d", len(posts))
		}

		if err := svc.DeleteUser(ctx, 1); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestPutUser_Unique(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db store.Database) {
		ctx := context.Background()
		svc := newService(db)

		var wg sync.WaitGroup
		var mu sync.Mutex
		created, conflicts := 0, 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.PutUser(ctx, store.Document{"id": int64(77), "name": "Racer"})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, store.ErrAlreadyExists):
					conflicts++
				default:
					t.Errorf("PutUser() unexpected error = %v", err)
				}
			}()
		}
		wg.Wait()

		if created != 1 || conflicts != 9 {
			t.Errorf("expected 1 created and 9 conflicts, got %d and %d", created, conflicts)
		}
		user, err := svc.GetUser(ctx, 77)
		if err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
		if user["name"] != "Racer" {
			t.Errorf("expected name Racer, got %v", user["name"])
		}
	})
}

func TestListUsers_PaginatesAndSorts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db store.Database) {
		ctx := context.Background()
		svc := newService(db)

		docs := make([]store.Document, 0, 25)
		for i := int64(1); i <= 25; i++ {
			docs = append(docs, store.Document{"id": i, "name": fmt.Sprintf("User %02d", i)})
		}
		if err := db.Collection("users").InsertMany(ctx, docs); err != nil {
			t.Fatalf("InsertMany() error = %v", err)
		}

		page, err := svc.ListUsers(ctx, users.ListParams{Page: 3, Limit: 10, Sort: users.SortNameAsc})
		if err != nil {
			t.Fatalf("ListUsers() error = %v", err)
		}
		if len(page) != 5 {
			t.Fatalf("expected 5 users on the last page, got %d", len(page))
		}
		if page[0]["name"] != "User 21" {
			t.Errorf("expected User 21 first, got %v", page[0]["name"])
		}

		page, err = svc.ListUsers(ctx, users.ListParams{Page: 1, Limit: 3, Sort: users.SortNameDesc})
		if err != nil {
			t.Fatalf("ListUsers() error = %v", err)
		}
		if len(page) != 3 || page[0]["name"] != "User 25" || page[2]["name"] != "User 23" {
			t.Errorf("unexpected descending page: %v", page)
		}

		page, err = svc.ListUsers(ctx, users.ListParams{Page: 9, Limit: 10})
		if err != nil {
			t.Fatalf("ListUsers() error = %v", err)
		}
		if page == nil || len(page) != 0 {
			t.Errorf("expected empty non-nil page, got %v", page)
		}
	})
}
