package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"DealsScanner/internal/ports"
)

// BrowserFetcher renders pages in headless Chrome for listings that load deals with JavaScript.
// Requires Chrome or Chromium on the host.
type BrowserFetcher struct {
	userAgent string
	settle    time.Duration
}

var _ ports.PageFetcher = (*BrowserFetcher)(nil)

// NewBrowserFetcher waits settle after the body is ready before capturing the DOM.
func NewBrowserFetcher(userAgent string, settle time.Duration) *BrowserFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgents[0]
	}
	return &BrowserFetcher{userAgent: userAgent, settle: settle}
}

// Fetch returns the rendered outer HTML of the document.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(b.userAgent),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return html, nil
}
