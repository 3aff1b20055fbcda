package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsqueue/internal/news"
)

func entry(ws int64, headline, url string, fetched time.Time) *news.QueueEntry {
	e := news.NewQueueEntry(ws, news.CandidateItem{Headline: headline, URL: url}, news.ImageRef{URL: "https://img.test/a.jpg", Method: "placeholder:default"}, fetched)
	return &e
}

func TestFileStorePersistsAcrossLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	fs := NewFileStore(path)
	require.NoError(t, fs.Load())
	ws, err := fs.EnsureWorkspace(ctx, "Default Workspace")
	require.NoError(t, err)
	_, err = fs.UpsertFeedSource(ctx, news.FeedSource{WorkspaceID: ws, Name: "World", URL: "https://feeds.test/world", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, fs.InsertEntry(ctx, entry(ws, "Persisted headline for reload", "https://news.test/1", time.Now())))

	reloaded := NewFileStore(path)
	require.NoError(t, reloaded.Load())

	again, err := reloaded.EnsureWorkspace(ctx, "Default Workspace")
	require.NoError(t, err)
	require.Equal(t, ws, again)

	feeds, err := reloaded.EnabledFeeds(ctx, ws)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	require.Equal(t, news.DefaultCategory, feeds[0].Category)

	found, err := reloaded.HasSourceURL(ctx, ws, "https://news.test/1")
	require.NoError(t, err)
	require.True(t, found)
}

func TestFileStoreUpsertKeepsEnabledFlag(t *testing.T) {
	ctx := context.Background()
	fs := NewMemoryStore()

	id, err := fs.UpsertFeedSource(ctx, news.FeedSource{WorkspaceID: 1, URL: "https://feeds.test/a", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, fs.SetFeedEnabled(ctx, id, false))

	again, err := fs.UpsertFeedSource(ctx, news.FeedSource{WorkspaceID: 1, URL: "https://feeds.test/a", Name: "Renamed", Enabled: true})
	require.NoError(t, err)
	require.Equal(t, id, again)

	feeds, err := fs.EnabledFeeds(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, feeds)
}

func TestFileStoreDedupQueriesAreWorkspaceScoped(t *testing.T) {
	ctx := context.Background()
	fs := NewMemoryStore()
	headline := "Stocks rally as the central bank signals an end to rate hikes"
	require.NoError(t, fs.InsertEntry(ctx, entry(1, headline, "https://news.test/a", time.Now())))

	ok, err := fs.HasHeadline(ctx, 1, headline)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = fs.HasHeadline(ctx, 2, headline)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = fs.HasHeadlinePrefix(ctx, 1, news.HeadlinePrefix(headline, 50), 50)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = fs.HasSourceURL(ctx, 1, "https://news.test/b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreRetentionOperations(t *testing.T) {
	ctx := context.Background()
	fs := NewMemoryStore()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	stale := entry(1, "Stale headline that should archive", "https://news.test/stale", now.Add(-49*time.Hour))
	fresh := entry(1, "Fresh headline that should stay new", "https://news.test/fresh", now.Add(-time.Hour))
	ancient := entry(1, "Ancient headline that should be purged", "https://news.test/old", now.Add(-31*24*time.Hour))
	other := entry(2, "Other workspace headline untouched", "https://news.test/other", now.Add(-31*24*time.Hour))
	for _, e := range []*news.QueueEntry{stale, fresh, ancient, other} {
		require.NoError(t, fs.InsertEntry(ctx, e))
	}

	purged, err := fs.PurgeOlderThan(ctx, 1, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	archived, err := fs.ArchiveStale(ctx, 1, now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, archived)

	newOnes, err := fs.ListEntries(ctx, EntryFilter{WorkspaceID: 1, Status: news.StatusNew})
	require.NoError(t, err)
	require.Len(t, newOnes, 1)
	require.Equal(t, fresh.ID, newOnes[0].ID)

	all, err := fs.ListEntries(ctx, EntryFilter{WorkspaceID: 2})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestFileStoreOrphanDrafts(t *testing.T) {
	ctx := context.Background()
	fs := NewMemoryStore()
	e := entry(1, "Headline that keeps its draft alive", "https://news.test/a", time.Now())
	require.NoError(t, fs.InsertEntry(ctx, e))

	require.NoError(t, fs.AddDraft(ctx, &news.Draft{WorkspaceID: 1, NewsID: e.ID, Title: "kept"}))
	require.NoError(t, fs.AddDraft(ctx, &news.Draft{WorkspaceID: 1, NewsID: 9999, Title: "orphan"}))

	n, err := fs.DeleteOrphanDrafts(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	drafts := fs.Drafts(1)
	require.Len(t, drafts, 1)
	require.Equal(t, "kept", drafts[0].Title)
}

func TestFileStorePlaceholder(t *testing.T) {
	ctx := context.Background()
	fs := NewMemoryStore()
	ws, err := fs.EnsureWorkspace(ctx, "W")
	require.NoError(t, err)

	_, err = fs.PlaceholderImage(ctx, ws)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.SetPlaceholderImage(ctx, ws, "https://img.test/p.png"))
	got, err := fs.PlaceholderImage(ctx, ws)
	require.NoError(t, err)
	require.Equal(t, "https://img.test/p.png", got)

	require.ErrorIs(t, fs.SetPlaceholderImage(ctx, 42, "x"), ErrNotFound)
}
