package aggregates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPStoreSnapshot(t *testing.T) {
	var calls, decodedServed int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		atomic.AddInt32(&decodedServed, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"v1"`)
		w.Write(seedSnapshot)
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL, 5*time.Second, 3, time.Millisecond)

	first, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(first.FMAP) != 51 {
		t.Errorf("FMAP rows = %d, want 51", len(first.FMAP))
	}

	second, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("second Snapshot() error = %v", err)
	}
	if second != first {
		t.Error("not-modified response should return the cached snapshot")
	}
	if c, d := atomic.LoadInt32(&calls), atomic.LoadInt32(&decodedServed); c != 2 || d != 1 {
		t.Errorf("calls = %d, full responses = %d, want 2 and 1", c, d)
	}
}

func TestHTTPStoreYAMLByExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("source: mirror\nyearly:\n  - year: 2024\n    spending: 10\n    claims: 2\n"))
	}))
	defer server.Close()

	snap, err := NewHTTPStore(server.URL+"/snapshot.yaml?v=2", time.Second, 1, time.Millisecond).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Source != "mirror" || len(snap.Yearly) != 1 {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestHTTPStoreRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := NewHTTPStore(server.URL, time.Second, 3, time.Millisecond).Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if c := atomic.LoadInt32(&calls); c != 3 {
		t.Errorf("calls = %d, want 3", c)
	}
}

func TestHTTPStoreErrors(t *testing.T) {
	var calls int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	if _, err := NewHTTPStore(failing.URL, time.Second, 2, time.Millisecond).Snapshot(context.Background()); err == nil {
		t.Error("expected error after exhausting retries")
	}
	if c := atomic.LoadInt32(&calls); c != 2 {
		t.Errorf("calls = %d, want 2", c)
	}

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	if _, err := NewHTTPStore(missing.URL, time.Second, 3, time.Millisecond).Snapshot(context.Background()); err == nil {
		t.Error("expected error for 404")
	}

	invalid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"yearly":[{"year":2024,"spending":-1,"claims":1}]}`))
	}))
	defer invalid.Close()
	if _, err := NewHTTPStore(invalid.URL, time.Second, 1, time.Millisecond).Snapshot(context.Background()); err == nil {
		t.Error("expected validation error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPStore(failing.URL, time.Second, 3, time.Hour).Snapshot(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Snapshot() error = %v, want context.Canceled", err)
	}
}
