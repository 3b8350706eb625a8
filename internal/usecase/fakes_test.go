package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"DealsScanner/internal/clock"
	"DealsScanner/internal/domain"
	"DealsScanner/internal/ports"
)

type sentMessage struct {
	imageURL string
	body     string
}

type fakeMessenger struct {
	mu   sync.Mutex
	errs map[string][]error
	sent []sentMessage

	// clk, when set, is moved forward by latency on every call.
	clk     *clock.Fake
	latency time.Duration
}

func (m *fakeMessenger) next(key string) error {
	if m.clk != nil {
		m.clk.Advance(m.latency)
	}
	if m.errs == nil || len(m.errs[key]) == 0 {
		return nil
	}
	err := m.errs[key][0]
	m.errs[key] = m.errs[key][1:]
	return err
}

func (m *fakeMessenger) SendText(_ context.Context, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next(body); err != nil {
		return err
	}
	m.sent = append(m.sent, sentMessage{body: body})
	return nil
}

func (m *fakeMessenger) SendImage(_ context.Context, imageURL, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next(imageURL); err != nil {
		return err
	}
	m.sent = append(m.sent, sentMessage{imageURL: imageURL, body: caption})
	return nil
}

func (m *fakeMessenger) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type recordingAnnouncer struct {
	ids []string
	err error
}

func (a *recordingAnnouncer) MarkAnnounced(_ context.Context, id string) error {
	a.ids = append(a.ids, id)
	return a.err
}

type staticSource struct {
	pages []ports.Page
}

func (s staticSource) FetchPages(context.Context) []ports.Page { return s.pages }

type catalogStub struct {
	mu      sync.Mutex
	batches [][]string
	titles  map[string]string
}

func (c *catalogStub) GetItems(_ context.Context, ids []string) ([]domain.RawItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]string(nil), ids...))

	items := make([]domain.RawItem, 0, len(ids))
	for _, id := range ids {
		title := c.titles[id]
		image := "https://m.media-amazon.com/images/I/" + id + ".jpg"
		items = append(items, domain.RawItem{
			ID:       id,
			Title:    &title,
			ImageURL: &image,
			Listings: []domain.RawListing{{
				Price:       &domain.RawPrice{Amount: decimal.NewFromInt(300), Currency: "INR"},
				SavingBasis: &domain.RawPrice{Amount: decimal.NewFromInt(600), Currency: "INR"},
			}},
		})
	}
	return items, nil
}

type failingStore struct{}

func (failingStore) Load(context.Context) (map[string]time.Time, error) { return nil, nil }

func (failingStore) Save(context.Context, map[string]time.Time) error {
	return errors.New("disk full")
}
