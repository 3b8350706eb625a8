package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"DealsScanner/internal/catalog"
	"DealsScanner/internal/clock"
	"DealsScanner/internal/domain"
	"DealsScanner/internal/ledger"
	"DealsScanner/internal/metrics"
	"DealsScanner/internal/ports"
	"DealsScanner/internal/ranking"
	"DealsScanner/internal/scanner"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.PageSource
	Extractor   *scanner.Extractor
	Ledger      *ledger.Ledger
	Gateway     *catalog.Gateway
	Scorer      *ranking.Scorer
	Publisher   *Publisher
	Metrics     *metrics.Recorder
	Clock       clock.Clock
	Logger      *slog.Logger
	MaxProducts int
	// MetricsTextfile, when set, receives the registry after every run.
	MetricsTextfile string
}

// Pipeline implements the deals workflow:
// extract -> ledger filter -> enrich -> rank -> publish -> ledger update.
type Pipeline struct {
	source          ports.PageSource
	extractor       *scanner.Extractor
	ledger          *ledger.Ledger
	gateway         *catalog.Gateway
	scorer          *ranking.Scorer
	publisher       *Publisher
	metrics         *metrics.Recorder
	clk             clock.Clock
	logger          *slog.Logger
	maxProducts     int
	metricsTextfile string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:          deps.Source,
		extractor:       deps.Extractor,
		ledger:          deps.Ledger,
		gateway:         deps.Gateway,
		scorer:          deps.Scorer,
		publisher:       deps.Publisher,
		metrics:         deps.Metrics,
		clk:             deps.Clock,
		logger:          deps.Logger,
		maxProducts:     deps.MaxProducts,
		metricsTextfile: deps.MetricsTextfile,
	}
}

// Run executes one pass and always returns a summary, including for partial runs.
func (p *Pipeline) Run(ctx context.Context) (summary domain.RunSummary, err error) {
	summary = domain.RunSummary{RunID: uuid.NewString(), StartedAt: p.clk.Now()}
	log := p.logger.With("run_id", summary.RunID)

	defer func() {
		summary.FinishedAt = p.clk.Now()
		if p.ledger != nil {
			summary.LedgerSize = p.ledger.Len()
		}
		p.finish(log, summary, err)
	}()

	log.Info("run started")

	if p.source == nil || p.extractor == nil || p.ledger == nil || p.gateway == nil || p.publisher == nil {
		return summary, fmt.Errorf("pipeline is not fully wired")
	}

	p.ledger.Load(ctx)

	pages := p.source.FetchPages(ctx)
	blobs := make([]*scanner.Blob, 0, len(pages))
	for _, page := range pages {
		blobs = append(blobs, scanner.NewBlob(page.Name, page.Body))
	}
	ids := p.extractor.Extract(blobs...)
	summary.Discovered = len(ids)

	fresh := p.ledger.FilterNew(ids)
	summary.Filtered = len(ids) - len(fresh)

	if p.maxProducts > 0 && len(fresh) > p.maxProducts {
		summary.Truncated = len(fresh) - p.maxProducts
		fresh = fresh[:p.maxProducts]
	}
	log.Info("candidates ready", "discovered", summary.Discovered, "already_announced", summary.Filtered,
		"truncated", summary.Truncated, "new", len(fresh))

	if len(fresh) == 0 {
		log.Info("no new identifiers found")
		return summary, ctx.Err()
	}

	enriched, err := p.gateway.Enrich(ctx, fresh)
	summary.Requested = enriched.Requested
	summary.Enriched = len(enriched.Records)
	summary.Discarded = enriched.Discarded
	if err != nil {
		return summary, fmt.Errorf("enrich: %w", err)
	}
	if len(enriched.Records) == 0 {
		log.Info("no product passed filtering")
		return summary, nil
	}

	ranked := enriched.Records
	if p.scorer != nil {
		ranked = p.scorer.Rank(ranked)
	}

	published, err := p.publisher.Publish(ctx, ranked)
	summary.Sent = published.Sent
	summary.Failed = published.Failed
	if err != nil {
		return summary, fmt.Errorf("publish: %w", err)
	}

	return summary, nil
}

func (p *Pipeline) finish(log *slog.Logger, summary domain.RunSummary, err error) {
	if err != nil {
		log.Error("run stopped", "summary", summary, "error", err)
	} else {
		log.Info("run finished", "summary", summary)
	}

	if p.metrics == nil {
		return
	}
	p.metrics.ObserveRun(summary, err)
	if writeErr := p.metrics.WriteTextfile(p.metricsTextfile); writeErr != nil {
		log.Warn("metrics textfile not written", "error", writeErr)
	}
}
