// Package gateway serves API Gateway proxy events with an http.Handler.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// Handler adapts Lambda proxy events to an http.Handler.
type Handler struct {
	next   http.Handler
	logger *slog.Logger
}

// NewHandler creates a new gateway handler.
func NewHandler(next http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		next:   next,
		logger: logger,
	}
}

// HandleREST serves a REST API (v1 payload) proxy event.
func (h *Handler) HandleREST(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		query[k] = append(query[k], vs...)
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	header := http.Header{}
	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if header.Get(k) == "" {
			header.Set(k, v)
		}
	}
	if header.Get("X-Request-ID") == "" && event.RequestContext.RequestID != "" {
		header.Set("X-Request-ID", event.RequestContext.RequestID)
	}

	req, err := newRequest(ctx, event.HTTPMethod, event.Path, query, header, event.Body, event.IsBase64Encoded)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	rec := h.serve(req)
	body, encoded := rec.encodeBody()
	return events.APIGatewayProxyResponse{
		StatusCode:        rec.status,
		Headers:           rec.singleHeaders(),
		MultiValueHeaders: rec.header,
		Body:              body,
		IsBase64Encoded:   encoded,
	}, nil
}

// HandleHTTP serves an HTTP API (v2 payload) proxy event.
func (h *Handler) HandleHTTP(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	query, err := url.ParseQuery(event.RawQueryString)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, fmt.Errorf("parse query: %w", err)
	}

	header := http.Header{}
	for k, v := range event.Headers {
		header.Set(k, v)
	}
	if len(event.Cookies) > 0 {
		header.Set("Cookie", strings.Join(event.Cookies, "; "))
	}
	if header.Get("X-Request-ID") == "" && event.RequestContext.RequestID != "" {
		header.Set("X-Request-ID", event.RequestContext.RequestID)
	}

	path := event.RawPath
	if path == "" {
		path = event.RequestContext.HTTP.Path
	}
	req, err := newRequest(ctx, event.RequestContext.HTTP.Method, path, query, header, event.Body, event.IsBase64Encoded)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}

	rec := h.serve(req)
	body, encoded := rec.encodeBody()
	return events.APIGatewayV2HTTPResponse{
		StatusCode:        rec.status,
		Headers:           rec.singleHeaders(),
		MultiValueHeaders: rec.header,
		Body:              body,
		IsBase64Encoded:   encoded,
	}, nil
}

func (h *Handler) serve(req *http.Request) *responseRecorder {
	rec := newResponseRecorder()
	h.next.ServeHTTP(rec, req)
	h.logger.Debug("proxy event served",
		"method", req.Method,
		"path", req.URL.Path,
		"status", rec.status,
	)
	return rec
}

func newRequest(ctx context.Context, method, path string, query url.Values, header http.Header, body string, base64Encoded bool) (*http.Request, error) {
	raw := []byte(body)
	if base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		raw = decoded
	}
	if path == "" {
		path = "/"
	}

	u := &url.URL{Path: path, RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = header
	req.RequestURI = u.RequestURI()
	return req, nil
}

// responseRecorder buffers a response for conversion into a proxy response.
type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: http.Header{}}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

func (r *responseRecorder) singleHeaders() map[string]string {
	out := make(map[string]string, len(r.header))
	for k := range r.header {
		out[k] = r.header.Get(k)
	}
	return out
}

// encodeBody returns the body as text, or base64 when it is not valid UTF-8.
func (r *responseRecorder) encodeBody() (string, bool) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	b := r.body.Bytes()
	if utf8.Valid(b) {
		return string(b), false
	}
	return base64.StdEncoding.EncodeToString(b), true
}
