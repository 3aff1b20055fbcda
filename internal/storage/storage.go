// Package storage persists workspaces, feed sources, queue entries, drafts
// and workspace settings.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/deusflow/newsqueue/internal/news"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// EntryFilter selects queue entries for downstream consumers.
type EntryFilter struct {
	WorkspaceID int64
	Status      news.Status // empty = any
	Limit       int         // 0 = no limit
}

// Store is implemented by PostgresStore and FileStore.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	EnsureWorkspace(ctx context.Context, name string) (int64, error)
	WorkspaceIDs(ctx context.Context) ([]int64, error)

	UpsertFeedSource(ctx context.Context, src news.FeedSource) (int64, error)
	EnabledFeeds(ctx context.Context, workspaceID int64) ([]news.FeedSource, error)

	HasSourceURL(ctx context.Context, workspaceID int64, urls ...string) (bool, error)
	HasHeadline(ctx context.Context, workspaceID int64, headline string) (bool, error)
	HasHeadlinePrefix(ctx context.Context, workspaceID int64, prefix string, n int) (bool, error)

	InsertEntry(ctx context.Context, e *news.QueueEntry) error
	ListEntries(ctx context.Context, f EntryFilter) ([]news.QueueEntry, error)

	ArchiveStale(ctx context.Context, workspaceID int64, before time.Time) (int, error)
	PurgeOlderThan(ctx context.Context, workspaceID int64, before time.Time) (int, error)
	AddDraft(ctx context.Context, d *news.Draft) error
	DeleteOrphanDrafts(ctx context.Context, workspaceID int64) (int, error)

	PlaceholderImage(ctx context.Context, workspaceID int64) (string, error)
	SetPlaceholderImage(ctx context.Context, workspaceID int64, url string) error
}
