// Package app wires configuration, storage and the ingestion pipeline into a
// runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/newsqueue/internal/cache"
	"github.com/deusflow/newsqueue/internal/config"
	"github.com/deusflow/newsqueue/internal/events"
	"github.com/deusflow/newsqueue/internal/images"
	"github.com/deusflow/newsqueue/internal/ingest"
	"github.com/deusflow/newsqueue/internal/lock"
	"github.com/deusflow/newsqueue/internal/logger"
	"github.com/deusflow/newsqueue/internal/metrics"
	"github.com/deusflow/newsqueue/internal/ratelimit"
	"github.com/deusflow/newsqueue/internal/retention"
	"github.com/deusflow/newsqueue/internal/rss"
	"github.com/deusflow/newsqueue/internal/storage"
)

type App struct {
	cfg       *config.Config
	store     storage.Store
	orch      *ingest.Orchestrator
	sweeper   *retention.Sweeper
	publisher events.Publisher
	closers   []func()
	log       *slog.Logger
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.For("app")
	a := &App{cfg: cfg, log: log}

	store, err := openStore(ctx, cfg, logger.For("storage"))
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	if err := seed(ctx, store, cfg, log); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed feeds: %w", err)
	}

	searcher, closeSearcher, notice, err := newSearcher(ctx, cfg.AISearch)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeSearcher)
	var notices []string
	if notice != "" {
		log.Warn(notice)
		notices = append(notices, notice)
	}

	stockCache := cache.New[string]()
	a.closers = append(a.closers, stockCache.Close)

	tiers := []images.Tier{
		images.Embedded{},
		images.NewStock(images.StockConfig{
			Providers:     stockProviders(cfg.StockProviders),
			Timeout:       cfg.StockTimeout,
			CacheTTL:      cfg.StockCacheTTL,
			RatePerSecond: cfg.StockRatePerSecond,
			KeywordLimit:  cfg.StockKeywordLimit,
			Concurrency:   cfg.StockConcurrency,
		}, stockCache, logger.For("stock")),
	}
	if searcher != nil {
		budget := ratelimit.NewBudget(searcher.Name(), cfg.AISearch.MaxDaily, logger.For("ratelimit"))
		tiers = append(tiers, images.NewAI(searcher, budget, images.AIConfig{
			AllowedDomains: cfg.AISearch.AllowedDomains,
			Timeout:        cfg.AISearch.Timeout,
			Concurrency:    cfg.ResolveConcurrency,
		}, metrics.Global, logger.For("ai_search")))
	}

	resolverOpts := []images.Option{images.WithDefaultPlaceholder(cfg.DefaultPlaceholder)}
	if cfg.WatermarkCheckURL != "" {
		resolverOpts = append(resolverOpts, images.WithCleanChecker(
			images.NewHTTPCleanChecker(cfg.WatermarkCheckURL, cfg.WatermarkTimeout, logger.For("watermark"))))
	}
	resolver := images.NewResolver(store, logger.For("images"), tiers, resolverOpts...)

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaPublishTimeout, logger.For("events"))
		a.closers = append(a.closers, func() { _ = a.publisher.Close() })
	}

	a.sweeper = retention.NewSweeper(store, cfg.ArchiveAfter, cfg.PurgeAfter, logger.For("retention"))

	a.orch = ingest.New(store,
		rss.NewFetcher(cfg.FeedTimeout, cfg.MaxItemsPerFeed, logger.For("rss")),
		resolver,
		ingest.Config{
			FeedConcurrency:    cfg.FeedConcurrency,
			ResolveConcurrency: cfg.ResolveConcurrency,
			PrefixLength:       cfg.DedupPrefixLength,
			Location:           cfg.Location,
		},
		ingest.WithLocker(locker),
		ingest.WithSweeper(a.sweeper),
		ingest.WithPublisher(a.publisher),
		ingest.WithNotices(notices...),
		ingest.WithLogger(logger.For("ingest")),
	)
	return a, nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.RedisAddr == "" {
		return lock.NewLocal(), nil
	}
	client, err := lock.Connect(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.log.Info("using redis workspace lock", "addr", a.cfg.RedisAddr)
	return lock.NewRedis(client, 0, logger.For("lock")), nil
}

func stockProviders(in []config.StockProvider) []images.StockProvider {
	out := make([]images.StockProvider, 0, len(in))
	for _, p := range in {
		out = append(out, images.StockProvider{Name: p.Name, Kind: p.Kind, URL: p.URL})
	}
	return out
}

// RunOnce runs one cycle for every workspace, or for the named one. A failing
// workspace does not stop the others; the first error is returned.
func (a *App) RunOnce(ctx context.Context, workspace string, todayOnly bool) ([]ingest.Report, error) {
	ids, err := a.workspaceIDs(ctx, workspace)
	if err != nil {
		return nil, err
	}

	var reports []ingest.Report
	var firstErr error
	for _, id := range ids {
		_, rep, err := a.orch.RunCycle(ctx, id, todayOnly)
		reports = append(reports, rep)
		if err != nil {
			a.log.Error("cycle failed", "workspace", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			if errors.Is(err, context.Canceled) {
				break
			}
		}
	}
	return reports, firstErr
}

func (a *App) workspaceIDs(ctx context.Context, name string) ([]int64, error) {
	if name != "" {
		id, err := a.store.EnsureWorkspace(ctx, name)
		if err != nil {
			return nil, err
		}
		return []int64{id}, nil
	}
	return a.store.WorkspaceIDs(ctx)
}

// Serve runs cycles every CycleInterval and, when monitoring is enabled, the
// HTTP API. It returns when ctx is done.
func (a *App) Serve(ctx context.Context) error {
	a.sweeper.Start(ctx, time.Hour)
	defer a.sweeper.Stop()

	var srv *http.Server
	if a.cfg.EnableMonitoring {
		srv = &http.Server{
			Addr:              ":" + a.cfg.MonitoringPort,
			Handler:           NewRouter(a.orch, a.sweeper, a.store, metrics.Global, logger.For("http")),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			a.log.Info("monitoring server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("monitoring server failed", "error", err)
			}
		}()
	}

	a.runScheduled(ctx)
	ticker := time.NewTicker(a.cfg.CycleInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			a.runScheduled(ctx)
		case <-ctx.Done():
			break loop
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown monitoring server: %w", err)
		}
	}
	return nil
}

func (a *App) runScheduled(ctx context.Context) {
	reports, err := a.RunOnce(ctx, "", a.cfg.TodayOnly)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error("scheduled run finished with errors", "error", err)
	}
	for _, rep := range reports {
		for _, n := range rep.Notices {
			a.log.Warn("cycle notice", "workspace", rep.Workspace, "notice", n)
		}
	}
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
