// Package ingest runs ingestion cycles: fetch the enabled feeds of a
// workspace, drop duplicates, resolve an image per item and queue the rest.
package ingest

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newsqueue/internal/dedup"
	"github.com/deusflow/newsqueue/internal/events"
	"github.com/deusflow/newsqueue/internal/lock"
	"github.com/deusflow/newsqueue/internal/metrics"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/retention"
	"github.com/deusflow/newsqueue/internal/storage"
)

type FeedFetcher interface {
	Fetch(ctx context.Context, src news.FeedSource) (iter.Seq[news.CandidateItem], error)
}

type ImageResolver interface {
	Resolve(ctx context.Context, c news.CandidateItem, workspaceID int64) news.ImageRef
}

type Sweeper interface {
	Sweep(ctx context.Context, workspaceID int64) (retention.Result, error)
}

type Config struct {
	FeedConcurrency    int
	ResolveConcurrency int
	PrefixLength       int
	Location           *time.Location // calendar for today-only filtering
}

type Orchestrator struct {
	store     storage.Store
	fetcher   FeedFetcher
	resolver  ImageResolver
	index     *dedup.Index
	cfg       Config
	locker    lock.Locker
	sweeper   Sweeper
	publisher events.Publisher
	metrics   *metrics.Metrics
	notices   []string
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Orchestrator)

func WithLocker(l lock.Locker) Option { return func(o *Orchestrator) { o.locker = l } }

func WithSweeper(s Sweeper) Option { return func(o *Orchestrator) { o.sweeper = s } }

// WithPublisher sends an event per inserted entry. Publishing is best effort.
func WithPublisher(p events.Publisher) Option { return func(o *Orchestrator) { o.publisher = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// WithNotices adds configuration notices reported by every cycle, such as a
// missing AI credential.
func WithNotices(notices ...string) Option {
	return func(o *Orchestrator) { o.notices = append(o.notices, notices...) }
}

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func New(store storage.Store, fetcher FeedFetcher, resolver ImageResolver, cfg Config, opts ...Option) *Orchestrator {
	if cfg.FeedConcurrency <= 0 {
		cfg.FeedConcurrency = 4
	}
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	o := &Orchestrator{
		store:     store,
		fetcher:   fetcher,
		resolver:  resolver,
		index:     dedup.NewIndex(store, cfg.PrefixLength),
		cfg:       cfg,
		locker:    lock.NewLocal(),
		publisher: events.Nop{},
		metrics:   metrics.Global,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle ingests the enabled feeds of one workspace and returns the number
// of entries inserted. Only persistence failures and cancellation end a
// cycle with an error; feed and image failures are counted and logged.
func (o *Orchestrator) RunCycle(ctx context.Context, workspaceID int64, todayOnly bool) (inserted int, rep Report, err error) {
	rep = Report{
		CycleID:      uuid.NewString(),
		Workspace:    workspaceID,
		ImageSources: make(map[string]int),
		StartedAt:    o.now(),
	}
	log := o.log.With("cycle", rep.CycleID, "workspace", workspaceID)

	defer func() {
		rep.Skipped = rep.Duplicates + rep.DateFiltered
		rep.Duration = o.now().Sub(rep.StartedAt)
		inserted = rep.Inserted
		o.record(rep, err)
	}()

	unlock, err := o.locker.Lock(ctx, workspaceID)
	if err != nil {
		return 0, rep, fmt.Errorf("lock workspace: %w", err)
	}
	defer unlock()

	if err := o.store.Ping(ctx); err != nil {
		return 0, rep, fmt.Errorf("ping store: %w", err)
	}
	for _, n := range o.notices {
		rep.notice(n)
	}

	if o.sweeper != nil {
		res, err := o.sweeper.Sweep(ctx, workspaceID)
		if err != nil {
			return 0, rep, err
		}
		rep.Swept = res.Total()
	}

	feeds, err := o.store.EnabledFeeds(ctx, workspaceID)
	if err != nil {
		return 0, rep, fmt.Errorf("load feeds: %w", err)
	}
	if len(feeds) == 0 {
		rep.notice(fmt.Sprintf("no feeds enabled for workspace %d", workspaceID))
		log.Warn("no feeds enabled")
		return 0, rep, nil
	}

	batches := o.fetchAll(ctx, feeds, &rep, log)
	claims := dedup.NewClaims(o.index.PrefixLength())

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, rep, err
		}

		accepted, err := o.filter(ctx, workspaceID, batch, claims, todayOnly, &rep, log)
		if err != nil {
			return 0, rep, err
		}
		refs := o.resolveAll(ctx, workspaceID, accepted)

		for i, c := range accepted {
			if err := ctx.Err(); err != nil {
				log.Info("cycle cancelled", "inserted", rep.Inserted)
				return 0, rep, err
			}
			entry := news.NewQueueEntry(workspaceID, c, refs[i], o.now())
			if err := o.store.InsertEntry(ctx, &entry); err != nil {
				return 0, rep, err
			}
			rep.Inserted++
			rep.ImageSources[entry.ImageMethod]++
			o.publish(ctx, rep.CycleID, entry, log)
		}
	}

	log.Info("cycle completed",
		"fetched", rep.Fetched,
		"inserted", rep.Inserted,
		"duplicates", rep.Duplicates,
		"date_filtered", rep.DateFiltered,
		"feed_errors", rep.FeedErrors,
		"swept", rep.Swept)
	return rep.Inserted, rep, nil
}

// fetchAll downloads feeds concurrently and returns their items in feed
// order. A failing feed contributes an empty batch.
func (o *Orchestrator) fetchAll(ctx context.Context, feeds []news.FeedSource, rep *Report, log *slog.Logger) [][]news.CandidateItem {
	batches := make([][]news.CandidateItem, len(feeds))
	var failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(o.cfg.FeedConcurrency)
	for i, src := range feeds {
		g.Go(func() error {
			seq, err := o.fetcher.Fetch(ctx, src)
			if err != nil {
				log.Warn("feed failed", "feed", src.URL, "error", err)
				failed.Add(1)
				return nil
			}
			batches[i] = slices.Collect(seq)
			return nil
		})
	}
	_ = g.Wait()

	rep.FeedErrors += int(failed.Load())
	for _, b := range batches {
		rep.Fetched += len(b)
	}
	return batches
}

// filter runs sequentially so that in-cycle claims see items in feed order.
func (o *Orchestrator) filter(ctx context.Context, workspaceID int64, batch []news.CandidateItem, claims *dedup.Claims, todayOnly bool, rep *Report, log *slog.Logger) ([]news.CandidateItem, error) {
	today := o.now().In(o.cfg.Location)
	var accepted []news.CandidateItem

	for _, c := range batch {
		if todayOnly && c.DateKnown && !sameDay(c.PublishedAt.In(o.cfg.Location), today) {
			rep.DateFiltered++
			continue
		}

		dup, reason, err := o.index.IsDuplicate(ctx, workspaceID, c)
		if err != nil {
			return nil, err
		}
		if !dup {
			reason = claims.Seen(c)
			dup = reason != dedup.ReasonNone
		}
		if dup {
			rep.Duplicates++
			log.Debug("duplicate skipped", "reason", reason, "headline", c.Headline)
			continue
		}

		claims.Mark(c)
		accepted = append(accepted, c)
	}
	return accepted, nil
}

func (o *Orchestrator) resolveAll(ctx context.Context, workspaceID int64, items []news.CandidateItem) []news.ImageRef {
	refs := make([]news.ImageRef, len(items))
	var g errgroup.Group
	g.SetLimit(o.cfg.ResolveConcurrency)
	for i, c := range items {
		g.Go(func() error {
			refs[i] = o.resolver.Resolve(ctx, c, workspaceID)
			return nil
		})
	}
	_ = g.Wait()
	return refs
}

func (o *Orchestrator) publish(ctx context.Context, cycleID string, e news.QueueEntry, log *slog.Logger) {
	if err := o.publisher.Publish(ctx, events.NewEntryCreated(cycleID, e)); err != nil {
		log.Warn("failed to publish entry event", "entry", e.ID, "error", err)
	}
}

func (o *Orchestrator) record(rep Report, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordCycle(metrics.CycleCounts{
		Fetched:      rep.Fetched,
		Inserted:     rep.Inserted,
		Duplicates:   rep.Duplicates,
		DateFiltered: rep.DateFiltered,
		FeedErrors:   rep.FeedErrors,
		Swept:        rep.Swept,
	})
	o.metrics.RecordProcessingTime(rep.Duration)
	if err != nil {
		o.metrics.SetError(err.Error())
		return
	}
	o.metrics.SetLastRun()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
