package edgefn

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/infrastructure/resilience"
)

func TestScrapePostsRecordAndURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrape-url" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer anon-key" {
			t.Fatalf("missing bearer key")
		}
		var req scrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.RecordID != "rec-1" || req.URL != "https://example.com/a" {
			t.Fatalf("unexpected request %+v", req)
		}
		_, _ = io.WriteString(w, `{"text":"  Article body.  "}`)
	}))
	defer server.Close()

	text, err := New(server.URL+"/", "anon-key", time.Second, nil).Scrape(context.Background(), "rec-1", "https://example.com/a")
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if text != "Article body." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestScrapeRetriesUnavailableFunction(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"text":"ok"}`)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 2, RetryInitialBackoff: time.Millisecond})
	text, err := New(server.URL, "", time.Second, exec).Scrape(context.Background(), "rec-1", "https://example.com")
	if err != nil || text != "ok" {
		t.Fatalf("unexpected result %q, err %v", text, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestScrapeSurfacesFunctionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"blocked by robots.txt"}`)
	}))
	defer server.Close()

	if _, err := New(server.URL, "", time.Second, nil).Scrape(context.Background(), "rec-1", "https://example.com"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScrapeWithoutBaseURL(t *testing.T) {
	_, err := New("", "", time.Second, nil).Scrape(context.Background(), "rec-1", "https://example.com")
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
