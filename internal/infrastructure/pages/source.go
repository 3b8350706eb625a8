package pages

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"DealsScanner/internal/config"
	"DealsScanner/internal/ports"
)

// Source fetches every configured deals page with bounded concurrency.
type Source struct {
	pages       []config.PageConfig
	http        ports.PageFetcher
	browser     ports.PageFetcher
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

var _ ports.PageSource = (*Source)(nil)

// SourceDeps wires fetchers into a Source. Browser may be nil when no page needs rendering.
type SourceDeps struct {
	Pages       []config.PageConfig
	HTTP        ports.PageFetcher
	Browser     ports.PageFetcher
	Concurrency int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// NewSource applies defaults of three workers and a 25s timeout.
func NewSource(deps SourceDeps) *Source {
	if deps.Concurrency <= 0 {
		deps.Concurrency = 3
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 25 * time.Second
	}
	return &Source{
		pages:       deps.Pages,
		http:        deps.HTTP,
		browser:     deps.Browser,
		concurrency: deps.Concurrency,
		timeout:     deps.Timeout,
		logger:      deps.Logger,
	}
}

// FetchPages returns one Page per configured URL in configuration order.
// A failed fetch leaves that page's body empty and never cancels the others.
func (s *Source) FetchPages(ctx context.Context) []ports.Page {
	out := make([]ports.Page, len(s.pages))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, page := range s.pages {
		out[i] = ports.Page{Name: page.Name, URL: page.URL}
		g.Go(func() error {
			out[i].Body = s.fetch(ctx, page)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *Source) fetch(ctx context.Context, page config.PageConfig) string {
	fetcher := s.http
	if page.Browser && s.browser != nil {
		fetcher = s.browser
	}
	if fetcher == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	body, err := fetcher.Fetch(ctx, page.URL)
	if err != nil {
		s.warn("page fetch failed", "page", page.Name, "url", page.URL, "error", err)
		return ""
	}
	s.debug("page fetched", "page", page.Name, "bytes", len(body), "took", time.Since(started))
	return body
}

func (s *Source) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Source) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
