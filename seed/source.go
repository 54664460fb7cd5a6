// Package seed loads the user graph from an upstream REST source.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jacentio/usergraph/store"
)

var (
	// ErrFetch is returned when the upstream source cannot be reached or answers
	// with a non-2xx status.
	ErrFetch = errors.New("usergraph: upstream fetch failed")

	// ErrDecode is returned when an upstream body is not a JSON array of objects.
	ErrDecode = errors.New("usergraph: upstream decode failed")
)

// DefaultBaseURL is the public placeholder API the graph is seeded from.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// Source provides the three record sets of the user graph.
type Source interface {
	Users(ctx context.Context) ([]store.Document, error)
	Posts(ctx context.Context) ([]store.Document, error)
	Comments(ctx context.Context) ([]store.Document, error)
}

// HTTPSource fetches records from a jsonplaceholder-compatible API.
type HTTPSource struct {
	baseURL   string
	userLimit int
	client    *http.Client
}

// NewHTTPSource creates a source for baseURL. userLimit caps the users request
// (values below 1 use 10); timeout bounds each request.
func NewHTTPSource(baseURL string, userLimit int, timeout time.Duration) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userLimit < 1 {
		userLimit = 10
	}
	return &HTTPSource{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userLimit: userLimit,
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Users(ctx context.Context) ([]store.Document, error) {
	return s.fetch(ctx, fmt.Sprintf("/users?_limit=%d", s.userLimit))
}

func (s *HTTPSource) Posts(ctx context.Context) ([]store.Document, error) {
	return s.fetch(ctx, "/posts")
}

func (s *HTTPSource) Comments(ctx context.Context) ([]store.Document, error) {
	return s.fetch(ctx, "/comments")
}

func (s *HTTPSource) fetch(ctx context.Context, path string) ([]store.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	docs := make([]store.Document, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			return nil, fmt.Errorf("%w: %s: null element", ErrDecode, path)
		}
		docs = append(docs, store.NormalizeDocument(r))
	}
	return docs, nil
}
