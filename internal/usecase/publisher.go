package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"DealsScanner/internal/clock"
	"DealsScanner/internal/domain"
	"DealsScanner/internal/pacing"
	"DealsScanner/internal/ports"
	"DealsScanner/internal/retry"
)

// PublisherConfig tunes pacing and rendering of announcements.
type PublisherConfig struct {
	Delay          time.Duration
	Jitter         time.Duration
	SendAttempts   int
	MaxTitleLength int
}

// PublishResult counts the outcome of one Publish call.
type PublishResult struct {
	Sent    int
	Failed  int
	SentIDs []string
}

// Publisher sends ranked records to the channel and records confirmed sends.
type Publisher struct {
	messenger ports.Messenger
	announcer ports.Announcer
	pacer     *pacing.Pacer
	clk       clock.Clock
	cfg       PublisherConfig
	logger    *slog.Logger

	// OnThrottle, when set, is called for every rate limit response.
	OnThrottle func()
}

// NewPublisher wires the messenger and the ledger.
func NewPublisher(messenger ports.Messenger, announcer ports.Announcer, cfg PublisherConfig, clk clock.Clock, logger *slog.Logger) *Publisher {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.SendAttempts <= 0 {
		cfg.SendAttempts = 1
	}
	return &Publisher{
		messenger: messenger,
		announcer: announcer,
		pacer:     pacing.New(cfg.Delay, retry.UniformJitter(cfg.Jitter), clk),
		clk:       clk,
		cfg:       cfg,
		logger:    logger,
	}
}

// Publish sends records in order. A failed send is logged and skipped; only
// context cancellation stops the loop early.
func (p *Publisher) Publish(ctx context.Context, records []domain.ProductRecord) (PublishResult, error) {
	var result PublishResult

	for i, record := range records {
		if err := p.pacer.Wait(ctx); err != nil {
			return result, err
		}

		p.info("sending deal", "n", i+1, "of", len(records), "id", record.ID, "score", record.CategoryScore,
			"discount", record.DiscountPercent)

		err := p.send(ctx, record)
		p.pacer.Finish()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failed++
			p.warn("send failed", "id", record.ID, "error", err)
			continue
		}

		result.Sent++
		result.SentIDs = append(result.SentIDs, record.ID)
		if err := p.announcer.MarkAnnounced(ctx, record.ID); err != nil {
			p.alert("deal sent but ledger not persisted", "id", record.ID, "error", err)
		}
	}

	return result, nil
}

func (p *Publisher) send(ctx context.Context, record domain.ProductRecord) error {
	message := RenderMessage(record, p.cfg.MaxTitleLength)

	policy := retry.Policy{
		MaxAttempts: p.cfg.SendAttempts,
		Backoff:     retry.Exponential(max(p.cfg.Delay, time.Second), 5, retry.UniformJitter(p.cfg.Jitter)),
		Retryable:   func(err error) bool { return errors.Is(err, domain.ErrRateLimited) },
		OnRetry: func(attempt int, delay time.Duration, err error) {
			if p.OnThrottle != nil {
				p.OnThrottle()
			}
			p.warn("channel throttled, backing off", "id", record.ID, "attempt", attempt, "delay", delay, "error", err)
		},
	}

	_, err := retry.Do(ctx, p.clk, policy, func(ctx context.Context) (struct{}, error) {
		if record.HasImage() {
			return struct{}{}, p.messenger.SendImage(ctx, record.ImageURL, message)
		}
		return struct{}{}, p.messenger.SendText(ctx, message)
	})
	return err
}

func (p *Publisher) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Publisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Publisher) alert(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
