package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"DealsScanner/internal/catalog"
	"DealsScanner/internal/clock"
	"DealsScanner/internal/config"
	"DealsScanner/internal/domain"
	"DealsScanner/internal/infrastructure/paapi"
	"DealsScanner/internal/infrastructure/pages"
	"DealsScanner/internal/infrastructure/scheduler"
	"DealsScanner/internal/infrastructure/storage"
	"DealsScanner/internal/infrastructure/telegram"
	"DealsScanner/internal/ledger"
	"DealsScanner/internal/logging"
	"DealsScanner/internal/metrics"
	"DealsScanner/internal/ports"
	"DealsScanner/internal/ranking"
	"DealsScanner/internal/scanner"
	"DealsScanner/internal/usecase"
)

// ErrTelegramUnreachable is returned when the startup connection check fails.
var ErrTelegramUnreachable = errors.New("telegram connection check failed")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	clk      clock.Clock
	ledger   *ledger.Ledger
	closers  []io.Closer
	notifier *telegram.Notifier
	metrics  *metrics.Recorder
	pipeline *usecase.Pipeline
}

// NewLedgerOnly opens just the ledger, for maintenance commands that must not need credentials.
func NewLedgerOnly(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.ValidateLedger(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger, clk: clock.Real{}}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger.New(store, cfg.Ledger.Retention, a.clk, baseLogger.With("component", "ledger"))
	a.ledger.Load(ctx)
	return a, nil
}

// New validates cfg and builds the full pipeline. Any unusable setting is fatal here,
// before the pipeline touches the network.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	marketplace, err := paapi.LookupMarketplace(cfg.Amazon.Region)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	registry := scanner.DefaultRegistry()
	rules, err := registry.Select(cfg.Scanner.Rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	a, err := NewLedgerOnly(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}
	a.metrics = metrics.NewRecorder()

	telegramOpts := []telegram.Option{telegram.WithTimeout(cfg.Telegram.Timeout)}
	if cfg.Telegram.BaseURL != "" {
		telegramOpts = append(telegramOpts, telegram.WithBaseURL(cfg.Telegram.BaseURL))
	}
	a.notifier = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChannelID, telegramOpts...)

	var browser ports.PageFetcher
	for _, page := range cfg.Scanner.Pages {
		if page.Browser {
			browser = pages.NewBrowserFetcher(firstOrEmpty(cfg.Scanner.UserAgents), cfg.Scanner.BrowserSettle)
			break
		}
	}
	source := pages.NewSource(pages.SourceDeps{
		Pages:       cfg.Scanner.Pages,
		HTTP:        pages.NewHTTPFetcher(&http.Client{Timeout: cfg.Scanner.FetchTimeout}, cfg.Scanner.UserAgents),
		Browser:     browser,
		Concurrency: cfg.Scanner.Concurrency,
		Timeout:     cfg.Scanner.FetchTimeout,
		Logger:      baseLogger.With("component", "pages"),
	})

	client := paapi.NewClient(paapi.Config{
		AccessKey:   cfg.Amazon.AccessKey,
		SecretKey:   cfg.Amazon.SecretKey,
		PartnerTag:  cfg.Amazon.PartnerTag,
		Marketplace: marketplace,
		Endpoint:    cfg.Amazon.Endpoint,
		Timeout:     cfg.Catalog.Timeout,
	}, baseLogger.With("component", "paapi"))

	gateway := catalog.NewGateway(client, catalog.Config{
		BatchSize:      cfg.Catalog.BatchSize,
		PaceDelay:      cfg.Catalog.PaceDelay,
		RetryBaseDelay: cfg.Catalog.RetryBaseDelay,
		RetryJitter:    cfg.Catalog.RetryJitter,
		MaxAttempts:    cfg.Catalog.MaxAttempts,
		MinDiscount:    cfg.Catalog.MinDiscount,
	}, catalog.LinkBuilder{
		Domain:     marketplace.Domain,
		PartnerTag: cfg.Amazon.PartnerTag,
	}, baseLogger.With("component", "catalog"),
		catalog.WithThrottleHook(func() { a.metrics.Throttled("catalog") }))

	publisher := usecase.NewPublisher(a.notifier, a.ledger, usecase.PublisherConfig{
		Delay:          cfg.Publisher.Delay,
		Jitter:         cfg.Publisher.Jitter,
		SendAttempts:   cfg.Publisher.SendAttempts,
		MaxTitleLength: cfg.Publisher.MaxTitleLength,
	}, a.clk, baseLogger.With("component", "publisher"))
	publisher.OnThrottle = func() { a.metrics.Throttled("telegram") }

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:          source,
		Extractor:       scanner.NewExtractor(rules, baseLogger.With("component", "extractor")),
		Ledger:          a.ledger,
		Gateway:         gateway,
		Scorer:          ranking.NewScorer(ranking.DefaultCategories),
		Publisher:       publisher,
		Metrics:         a.metrics,
		Clock:           a.clk,
		Logger:          baseLogger.With("component", "pipeline"),
		MaxProducts:     cfg.MaxProductsPerRun,
		MetricsTextfile: cfg.Metrics.Textfile,
	})

	return a, nil
}

func (a *Application) openStore(ctx context.Context) (ports.LedgerStore, error) {
	cfg := a.cfg.Ledger
	log := a.logger.With("component", "storage", "backend", cfg.Backend)

	switch cfg.Backend {
	case "file", "":
		store, err := storage.NewFileStore(cfg.Path, log)
		if err != nil {
			return nil, fmt.Errorf("ledger file store: %w", err)
		}
		log.Debug("ledger store ready", "path", store.Path())
		return store, nil
	case "sqlite":
		store, err := storage.NewSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("ledger sqlite store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case "postgres":
		store, err := storage.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("ledger postgres store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case "redis":
		store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, cfg.Retention, a.clk)
		if err != nil {
			return nil, fmt.Errorf("ledger redis store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case "memory":
		log.Warn("ledger is not persisted; announcements will repeat after restart")
		return storage.NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown ledger backend %q", config.ErrInvalid, cfg.Backend)
	}
}

// Check verifies the bot token against getMe.
func (a *Application) Check(ctx context.Context) (telegram.BotInfo, error) {
	if a.notifier == nil {
		return telegram.BotInfo{}, fmt.Errorf("telegram is not configured")
	}
	info, err := a.notifier.GetMe(ctx)
	if err != nil {
		return telegram.BotInfo{}, fmt.Errorf("%w: %w", ErrTelegramUnreachable, err)
	}
	a.logger.Info("telegram connected", "bot", "@"+info.Username)
	return info, nil
}

func (a *Application) verify(ctx context.Context) error {
	if !a.cfg.Telegram.VerifyOnStart {
		return nil
	}
	_, err := a.Check(ctx)
	return err
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (domain.RunSummary, error) {
	if a.pipeline == nil {
		return domain.RunSummary{}, fmt.Errorf("pipeline is not configured")
	}
	if err := a.verify(ctx); err != nil {
		return domain.RunSummary{}, err
	}
	return a.pipeline.Run(ctx)
}

// Watch runs the pipeline every configured interval until ctx is cancelled.
func (a *Application) Watch(ctx context.Context) error {
	if a.pipeline == nil {
		return fmt.Errorf("pipeline is not configured")
	}
	if err := a.verify(ctx); err != nil {
		return err
	}

	if addr := a.cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr); err != nil {
				a.logger.Warn("metrics endpoint stopped", "addr", addr, "error", err)
			}
		}()
	}

	sched := usecase.NewScheduler(scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval), a.pipeline,
		a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("watching for deals", "interval", a.cfg.Scheduler.Interval)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

// Ledger exposes the loaded ledger for maintenance commands.
func (a *Application) Ledger() *ledger.Ledger { return a.ledger }

// Close releases store connections.
func (a *Application) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
