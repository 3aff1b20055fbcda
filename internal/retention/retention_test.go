package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsqueue/internal/logger"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/storage"
)

func insertAt(t *testing.T, store storage.Store, ws int64, headline string, fetched time.Time) int64 {
	t.Helper()
	e := news.QueueEntry{
		WorkspaceID: ws,
		Headline:    headline,
		SourceURL:   "https://example.com/" + headline,
		Status:      news.StatusNew,
		FetchedAt:   fetched,
	}
	require.NoError(t, store.InsertEntry(context.Background(), &e))
	return e.ID
}

func TestSweepArchivesStaleEntries(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ws, err := store.EnsureWorkspace(ctx, "W")
	require.NoError(t, err)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	insertAt(t, store, ws, "old-entry", now.Add(-49*time.Hour))
	insertAt(t, store, ws, "fresh-entry", now.Add(-1*time.Hour))

	sweeper := NewSweeper(store, 48*time.Hour, 30*24*time.Hour, logger.Nop()).
		WithClock(func() time.Time { return now })

	res, err := sweeper.Sweep(ctx, ws)
	require.NoError(t, err)
	require.Equal(t, Result{Archived: 1}, res)
	require.Equal(t, 1, res.Total())

	entries, err := store.ListEntries(ctx, storage.EntryFilter{WorkspaceID: ws})
	require.NoError(t, err)
	statuses := map[string]news.Status{}
	for _, e := range entries {
		statuses[e.Headline] = e.Status
	}
	require.Equal(t, news.StatusArchived, statuses["old-entry"])
	require.Equal(t, news.StatusNew, statuses["fresh-entry"])

	again, err := sweeper.Sweep(ctx, ws)
	require.NoError(t, err)
	require.Zero(t, again.Total())
}

func TestSweepPurgesAndDropsOrphanDrafts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ws, err := store.EnsureWorkspace(ctx, "W")
	require.NoError(t, err)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ancient := insertAt(t, store, ws, "ancient", now.Add(-40*24*time.Hour))
	kept := insertAt(t, store, ws, "kept", now.Add(-2*time.Hour))

	require.NoError(t, store.AddDraft(ctx, &news.Draft{WorkspaceID: ws, NewsID: ancient, Title: "gone"}))
	require.NoError(t, store.AddDraft(ctx, &news.Draft{WorkspaceID: ws, NewsID: kept, Title: "stays"}))

	sweeper := NewSweeper(store, 0, 0, logger.Nop()).WithClock(func() time.Time { return now })
	res, err := sweeper.Sweep(ctx, ws)
	require.NoError(t, err)
	require.Equal(t, Result{Purged: 1, Orphans: 1}, res)

	drafts := store.Drafts(ws)
	require.Len(t, drafts, 1)
	require.Equal(t, "stays", drafts[0].Title)
}

func TestSweepAllCoversEveryWorkspace(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	now := time.Now()
	for _, name := range []string{"A", "B"} {
		ws, err := store.EnsureWorkspace(ctx, name)
		require.NoError(t, err)
		insertAt(t, store, ws, name+"-stale", now.Add(-72*time.Hour))
	}

	res, err := NewSweeper(store, 0, 0, logger.Nop()).SweepAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Archived)
}

func TestStartAndStopTwice(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ws, err := store.EnsureWorkspace(ctx, "W")
	require.NoError(t, err)
	insertAt(t, store, ws, "long-gone", time.Now().Add(-72*time.Hour))

	s := NewSweeper(store, 0, 0, logger.Nop())
	s.Start(ctx, time.Hour)

	// Start sweeps once before returning
	entries, err := store.ListEntries(ctx, storage.EntryFilter{WorkspaceID: ws, Status: news.StatusArchived})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
}
