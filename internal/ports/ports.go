package ports

import (
	"context"
	"time"

	"DealsScanner/internal/domain"
)

// Page is the raw body of one deals page.
type Page struct {
	Name string
	URL  string
	Body string
}

// PageSource pulls raw deal pages from the marketplace.
type PageSource interface {
	FetchPages(ctx context.Context) []Page
}

// PageFetcher retrieves a single page body.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// CatalogClient looks up a batch of identifiers in the product catalog.
// Throttling is reported as domain.ErrRateLimited.
type CatalogClient interface {
	GetItems(ctx context.Context, ids []string) ([]domain.RawItem, error)
}

// LedgerStore persists the identifier -> announced-at mapping.
type LedgerStore interface {
	Load(ctx context.Context) (map[string]time.Time, error)
	Save(ctx context.Context, entries map[string]time.Time) error
}

// Messenger publishes announcements to the channel. A nil error is a positive acknowledgment.
type Messenger interface {
	SendText(ctx context.Context, body string) error
	SendImage(ctx context.Context, imageURL, caption string) error
}

// Announcer records confirmed announcements.
type Announcer interface {
	MarkAnnounced(ctx context.Context, id string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
