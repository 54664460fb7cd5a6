package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jacentio/usergraph/internal/config"
	"github.com/jacentio/usergraph/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = store.BackendMemory
	cfg.Server.Addr = "127.0.0.1:0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func TestNewOpenerFromConfig(t *testing.T) {
	for _, backend := range []string{store.BackendMongo, store.BackendDynamoDB, store.BackendMemory} {
		cfg := store.DefaultConfig()
		cfg.Backend = backend
		open, err := NewOpenerFromConfig(cfg)
		if err != nil || open == nil {
			t.Errorf("%s: expected opener, got %v", backend, err)
		}
	}

	cfg := store.DefaultConfig()
	cfg.Backend = "cassandra"
	if _, err := NewOpenerFromConfig(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestApp_UninitializedUntilConnect(t *testing.T) {
	a, err := New(memoryConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h := a.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 before connect, got %d", rec.Code)
	}

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer a.Close(context.Background())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after connect, got %d", rec.Code)
	}
}

func TestApp_ServeAndShutdown(t *testing.T) {
	a, err := New(memoryConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/"
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = http.Get(url)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
