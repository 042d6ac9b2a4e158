package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchM3U(t *testing.T) {
	retryInitialInterval = time.Millisecond
	defer func() { retryInitialInterval = 500 * time.Millisecond }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	text, err := FetchM3U(context.Background(), srv.URL, "test-agent", 5*time.Second)
	if err != nil {
		t.Fatalf("FetchM3U: %v", err)
	}
	if !strings.HasPrefix(text, "#EXTM3U") {
		t.Errorf("unexpected body %q", text)
	}
}

func TestFetchM3URetriesServerErrors(t *testing.T) {
	retryInitialInterval = time.Millisecond
	defer func() { retryInitialInterval = 500 * time.Millisecond }()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	if _, err := FetchM3U(context.Background(), srv.URL, "", 5*time.Second); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestFetchM3UClientErrorIsTerminal(t *testing.T) {
	retryInitialInterval = time.Millisecond
	defer func() { retryInitialInterval = 500 * time.Millisecond }()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FetchM3U(context.Background(), srv.URL, "", 5*time.Second); err == nil {
		t.Fatal("expected error for HTTP 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (no retry on 4xx)", got)
	}
}
