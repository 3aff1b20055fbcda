// Package retention archives stale queue entries, purges old ones and drops
// drafts whose entry is gone.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultArchiveAfter = 48 * time.Hour
	DefaultPurgeAfter   = 30 * 24 * time.Hour
)

// Store is the subset of storage.Store the sweeper needs.
type Store interface {
	WorkspaceIDs(ctx context.Context) ([]int64, error)
	ArchiveStale(ctx context.Context, workspaceID int64, before time.Time) (int, error)
	PurgeOlderThan(ctx context.Context, workspaceID int64, before time.Time) (int, error)
	DeleteOrphanDrafts(ctx context.Context, workspaceID int64) (int, error)
}

// Result counts the rows touched by one sweep.
type Result struct {
	Archived int
	Purged   int
	Orphans  int
}

func (r Result) Total() int {
	return r.Archived + r.Purged + r.Orphans
}

type Sweeper struct {
	store        Store
	archiveAfter time.Duration
	purgeAfter   time.Duration
	now          func() time.Time
	log          *slog.Logger
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewSweeper(store Store, archiveAfter, purgeAfter time.Duration, log *slog.Logger) *Sweeper {
	if archiveAfter <= 0 {
		archiveAfter = DefaultArchiveAfter
	}
	if purgeAfter <= archiveAfter {
		purgeAfter = max(DefaultPurgeAfter, 2*archiveAfter)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		store:        store,
		archiveAfter: archiveAfter,
		purgeAfter:   purgeAfter,
		now:          time.Now,
		log:          log,
		stopCh:       make(chan struct{}),
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep is idempotent: a second run right after the first touches nothing.
func (s *Sweeper) Sweep(ctx context.Context, workspaceID int64) (Result, error) {
	var res Result
	now := s.now()

	purged, err := s.store.PurgeOlderThan(ctx, workspaceID, now.Add(-s.purgeAfter))
	if err != nil {
		return res, fmt.Errorf("purge entries: %w", err)
	}
	res.Purged = purged

	archived, err := s.store.ArchiveStale(ctx, workspaceID, now.Add(-s.archiveAfter))
	if err != nil {
		return res, fmt.Errorf("archive entries: %w", err)
	}
	res.Archived = archived

	orphans, err := s.store.DeleteOrphanDrafts(ctx, workspaceID)
	if err != nil {
		return res, fmt.Errorf("delete orphan drafts: %w", err)
	}
	res.Orphans = orphans

	if res.Total() > 0 {
		s.log.Info("retention sweep completed",
			"workspace", workspaceID,
			"archived", res.Archived,
			"purged", res.Purged,
			"orphan_drafts", res.Orphans)
	} else {
		s.log.Debug("nothing to sweep", "workspace", workspaceID)
	}
	return res, nil
}

// SweepAll sweeps every workspace and returns the combined result. A failing
// workspace is logged and skipped.
func (s *Sweeper) SweepAll(ctx context.Context) (Result, error) {
	var total Result
	ids, err := s.store.WorkspaceIDs(ctx)
	if err != nil {
		return total, fmt.Errorf("list workspaces: %w", err)
	}
	for _, id := range ids {
		res, err := s.Sweep(ctx, id)
		if err != nil {
			s.log.Error("retention sweep failed", "workspace", id, "error", err)
			continue
		}
		total.Archived += res.Archived
		total.Purged += res.Purged
		total.Orphans += res.Orphans
	}
	return total, nil
}

// Start runs SweepAll now and then every interval until ctx is done or Stop
// is called.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if _, err := s.SweepAll(ctx); err != nil {
		s.log.Warn("initial retention sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.SweepAll(ctx); err != nil {
					s.log.Error("retention sweep failed", "error", err)
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop started by Start. It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
