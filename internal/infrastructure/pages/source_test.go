package pages

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"DealsScanner/internal/config"
)

func TestHTTPFetcherSendsBrowserHeaders(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		_, _ = w.Write([]byte(`<a href="/dp/B0ABCDEF12">deal</a>`))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.Client(), []string{"test-agent/1.0"})
	body, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch returned error: %v", err)
	}
	if body != `<a href="/dp/B0ABCDEF12">deal</a>` {
		t.Fatalf("unexpected body %q", body)
	}
	got := <-headers
	if ua := got.Get("User-Agent"); ua != "test-agent/1.0" {
		t.Fatalf("expected pooled user agent, got %q", ua)
	}
	if got.Get("Accept") == "" {
		t.Fatal("expected Accept header")
	}
}

func TestHTTPFetcherRejectsNonOK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(srv.Client(), nil).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestSourceIsolatesFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("deals"))
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	source := NewSource(SourceDeps{
		Pages: []config.PageConfig{
			{Name: "gone", URL: srv.URL + "/gone"},
			{Name: "slow", URL: srv.URL + "/slow"},
			{Name: "ok", URL: srv.URL + "/ok"},
		},
		HTTP:        NewHTTPFetcher(srv.Client(), nil),
		Concurrency: 3,
		Timeout:     100 * time.Millisecond,
	})

	pages := source.FetchPages(context.Background())
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if pages[0].Body != "" || pages[1].Body != "" {
		t.Fatalf("failed pages must be empty, got %q and %q", pages[0].Body, pages[1].Body)
	}
	if pages[2].Name != "ok" || pages[2].Body != "deals" {
		t.Fatalf("unexpected ok page %+v", pages[2])
	}
}

type countingFetcher struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	urls     []string
}

func (c *countingFetcher) Fetch(_ context.Context, url string) (string, error) {
	n := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)

	c.mu.Lock()
	c.peak = max(c.peak, n)
	c.urls = append(c.urls, url)
	c.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	if url == "browser://fail" {
		return "", errors.New("render failed")
	}
	return url, nil
}

func TestSourceBoundsConcurrencyAndRoutesBrowserPages(t *testing.T) {
	t.Parallel()

	plain := &countingFetcher{}
	browser := &countingFetcher{}
	source := NewSource(SourceDeps{
		Pages: []config.PageConfig{
			{Name: "a", URL: "plain://a"},
			{Name: "b", URL: "plain://b"},
			{Name: "c", URL: "plain://c"},
			{Name: "d", URL: "plain://d"},
			{Name: "e", URL: "browser://e", Browser: true},
			{Name: "f", URL: "browser://fail", Browser: true},
		},
		HTTP:        plain,
		Browser:     browser,
		Concurrency: 2,
	})

	pages := source.FetchPages(context.Background())

	if plain.peak > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", plain.peak)
	}
	if len(plain.urls) != 4 || len(browser.urls) != 2 {
		t.Fatalf("unexpected routing: plain=%v browser=%v", plain.urls, browser.urls)
	}
	if pages[4].Body != "browser://e" || pages[5].Body != "" {
		t.Fatalf("unexpected browser bodies %q %q", pages[4].Body, pages[5].Body)
	}
}
