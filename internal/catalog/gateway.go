// Package catalog turns candidate identifiers into complete product records.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"DealsScanner/internal/clock"
	"DealsScanner/internal/domain"
	"DealsScanner/internal/ports"
	"DealsScanner/internal/retry"
)

const (
	// MaxBatchSize is the per-call identifier limit of the catalog API.
	MaxBatchSize = 10
	// maxBackoffExponent caps both retry backoff and the cautious pacing delay at 2^5.
	maxBackoffExponent = 5
)

// Config tunes batching, pacing and retries.
type Config struct {
	BatchSize      int
	PaceDelay      time.Duration
	RetryBaseDelay time.Duration
	RetryJitter    time.Duration
	MaxAttempts    int
	MinDiscount    float64
}

// DefaultConfig mirrors the values the bot has been running with.
func DefaultConfig() Config {
	return Config{
		BatchSize:      8,
		PaceDelay:      2 * time.Second,
		RetryBaseDelay: 2 * time.Second,
		RetryJitter:    time.Second,
		MaxAttempts:    5,
		MinDiscount:    10,
	}
}

// Result is the outcome of one Enrich call.
type Result struct {
	Records       []domain.ProductRecord
	Requested     int
	Returned      int
	Discarded     int
	FailedBatches int
}

// Gateway batches identifiers through the catalog client with pacing and backoff.
type Gateway struct {
	client ports.CatalogClient
	cfg    Config
	links  LinkBuilder
	clk    clock.Clock
	jitter func() time.Duration
	logger *slog.Logger

	onThrottle          func()
	consecutiveFailures int
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(g *Gateway) { g.clk = clk }
}

// WithJitter replaces the random jitter source.
func WithJitter(jitter func() time.Duration) Option {
	return func(g *Gateway) { g.jitter = jitter }
}

// WithThrottleHook is called for every rate limit response.
func WithThrottleHook(hook func()) Option {
	return func(g *Gateway) { g.onThrottle = hook }
}

// NewGateway wires the catalog client.
func NewGateway(client ports.CatalogClient, cfg Config, links LinkBuilder, logger *slog.Logger, opts ...Option) *Gateway {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = min(max(cfg.BatchSize, 1), MaxBatchSize)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	g := &Gateway{
		client: client,
		cfg:    cfg,
		links:  links,
		clk:    clock.Real{},
		jitter: retry.UniformJitter(cfg.RetryJitter),
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enrich looks up ids batch by batch and keeps only complete records, in input order.
// Failed batches are skipped; only context cancellation is returned as an error.
func (g *Gateway) Enrich(ctx context.Context, ids []string) (Result, error) {
	result := Result{Requested: len(ids)}

	for start := 0; start < len(ids); start += g.cfg.BatchSize {
		end := min(start+g.cfg.BatchSize, len(ids))
		batch := ids[start:end]
		batchNo := start/g.cfg.BatchSize + 1

		if err := g.clk.Sleep(ctx, g.paceDelay()); err != nil {
			return result, err
		}

		g.info("query catalog", "batch", batchNo, "size", len(batch))
		items, err := g.fetchBatch(ctx, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.FailedBatches++
			g.warn("catalog batch skipped", "batch", batchNo, "ids", batch, "error", err)
			continue
		}

		result.Returned += len(items)
		for _, item := range items {
			record := Normalize(item, g.links)
			if !record.Complete(g.cfg.MinDiscount) {
				result.Discarded++
				g.debug("discard incomplete record", "id", record.ID, "title", record.Title,
					"price", record.CurrentPrice.String(), "discount", record.DiscountPercent)
				continue
			}
			result.Records = append(result.Records, record)
		}
	}

	return result, nil
}

func (g *Gateway) fetchBatch(ctx context.Context, batch []string) ([]domain.RawItem, error) {
	policy := retry.Policy{
		MaxAttempts: g.cfg.MaxAttempts,
		Backoff:     retry.Exponential(g.cfg.RetryBaseDelay, maxBackoffExponent, g.jitter),
		Retryable:   func(err error) bool { return errors.Is(err, domain.ErrRateLimited) },
		OnRetry: func(attempt int, delay time.Duration, err error) {
			g.warn("catalog throttled, backing off",
				"attempt", attempt, "max_attempts", g.cfg.MaxAttempts, "delay", delay, "error", err)
		},
	}

	return retry.Do(ctx, g.clk, policy, func(ctx context.Context) ([]domain.RawItem, error) {
		items, err := g.client.GetItems(ctx, batch)
		switch {
		case err == nil:
			g.consecutiveFailures = 0
		case errors.Is(err, domain.ErrRateLimited):
			g.consecutiveFailures++
			if g.onThrottle != nil {
				g.onThrottle()
			}
		}
		return items, err
	})
}

// paceDelay is the base delay, scaled up while the API keeps throttling us.
func (g *Gateway) paceDelay() time.Duration {
	base := g.cfg.PaceDelay
	if base <= 0 {
		return 0
	}
	if g.consecutiveFailures == 0 {
		return base
	}
	exp := min(g.consecutiveFailures, maxBackoffExponent)
	delay := time.Duration(float64(base) * math.Pow(2, float64(exp)))
	if g.jitter != nil {
		delay += g.jitter()
	}
	return delay
}

// ConsecutiveFailures is the current count of throttled calls since the last success.
func (g *Gateway) ConsecutiveFailures() int { return g.consecutiveFailures }

func (g *Gateway) info(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Info(msg, args...)
	}
}

func (g *Gateway) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

func (g *Gateway) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
